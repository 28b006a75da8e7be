package entity

// LinkRecord 知识库中的一条链接记录。记录完全由外部知识库持有，
// URL 是唯一键：已存在即为去重判定依据，命中后原样复用各字段。
type LinkRecord struct {
	URL         string
	Title       string
	Source      string
	Category    string
	Rating      string
	Summary     string
	PublishDate string // ISO 8601，抓取不到则为空，绝不用当前时间兜底
}

// LinkInfo 一条 URL 的处理结果，Existing 标记知识库命中（未重新抓取）
type LinkInfo struct {
	URL      string
	Title    string
	Category string
	Rating   string
	Summary  string
	Existing bool
}
