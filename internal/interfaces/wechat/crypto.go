package wechat

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"sort"
	"strings"
)

// MsgCrypt 企业微信回调消息的加解密器（官方 AES-CBC 信封格式）。
// 明文信封：16 字节随机串 + 4 字节网络序长度 + 消息体 + CorpID。
type MsgCrypt struct {
	token  string
	corpID string
	key    []byte // 32 字节 AES key，EncodingAESKey base64 补位解出
}

// NewMsgCrypt 创建加解密器
func NewMsgCrypt(token, encodingAESKey, corpID string) (*MsgCrypt, error) {
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil || len(key) != 32 {
		return nil, fmt.Errorf("invalid encoding aes key")
	}
	return &MsgCrypt{token: token, corpID: corpID, key: key}, nil
}

// signature 把 token/timestamp/nonce/密文按字典序拼接后取 SHA1
func (c *MsgCrypt) signature(timestamp, nonce, encrypted string) string {
	parts := []string{c.token, timestamp, nonce, encrypted}
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// VerifyURL 回调地址校验：验签后解出 echostr 明文
func (c *MsgCrypt) VerifyURL(msgSignature, timestamp, nonce, echoStr string) (string, error) {
	if c.signature(timestamp, nonce, echoStr) != msgSignature {
		return "", fmt.Errorf("signature mismatch")
	}
	plain, err := c.decrypt(echoStr)
	if err != nil {
		return "", err
	}
	return plain, nil
}

// 加密消息的请求信封
type encryptedEnvelope struct {
	Encrypt string `xml:"Encrypt"`
}

// DecryptMsg 验签并解出回调消息的明文 XML
func (c *MsgCrypt) DecryptMsg(postData []byte, msgSignature, timestamp, nonce string) (string, error) {
	var envelope encryptedEnvelope
	if err := xml.Unmarshal(postData, &envelope); err != nil {
		return "", fmt.Errorf("parse encrypted envelope: %w", err)
	}
	if c.signature(timestamp, nonce, envelope.Encrypt) != msgSignature {
		return "", fmt.Errorf("signature mismatch")
	}
	return c.decrypt(envelope.Encrypt)
}

// EncryptMsg 加密应答明文并拼出带签名的信封 XML
func (c *MsgCrypt) EncryptMsg(replyMsg, timestamp, nonce string) (string, error) {
	encrypted, err := c.encrypt(replyMsg)
	if err != nil {
		return "", err
	}
	signature := c.signature(timestamp, nonce, encrypted)

	return fmt.Sprintf(
		"<xml><Encrypt><![CDATA[%s]]></Encrypt><MsgSignature><![CDATA[%s]]></MsgSignature><TimeStamp>%s</TimeStamp><Nonce><![CDATA[%s]]></Nonce></xml>",
		encrypted, signature, timestamp, nonce), nil
}

func (c *MsgCrypt) decrypt(encoded string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("invalid ciphertext length %d", len(ciphertext))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, c.key[:aes.BlockSize]).CryptBlocks(plain, ciphertext)

	// 去 PKCS#7 填充
	pad := int(plain[len(plain)-1])
	if pad < 1 || pad > 32 || pad > len(plain) {
		return "", fmt.Errorf("invalid padding")
	}
	content := plain[16 : len(plain)-pad]

	if len(content) < 4 {
		return "", fmt.Errorf("envelope too short")
	}
	msgLen := binary.BigEndian.Uint32(content[:4])
	if int(msgLen)+4 > len(content) {
		return "", fmt.Errorf("invalid envelope length")
	}

	msg := string(content[4 : msgLen+4])
	fromCorpID := string(content[msgLen+4:])
	if fromCorpID != c.corpID {
		return "", fmt.Errorf("corp id mismatch")
	}
	return msg, nil
}

func (c *MsgCrypt) encrypt(plaintext string) (string, error) {
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", err
	}

	msg := []byte(plaintext)
	buf := make([]byte, 0, 16+4+len(msg)+len(c.corpID))
	buf = append(buf, random...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg)))
	buf = append(buf, msg...)
	buf = append(buf, []byte(c.corpID)...)

	pad := 32 - len(buf)%32
	for i := 0; i < pad; i++ {
		buf = append(buf, byte(pad))
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", err
	}
	out := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, c.key[:aes.BlockSize]).CryptBlocks(out, buf)

	return base64.StdEncoding.EncodeToString(out), nil
}
