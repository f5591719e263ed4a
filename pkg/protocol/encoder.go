package protocol

import "io"

// EncodeScore 编码上行帧：仅一个亮度分数字节，无帧头
func EncodeScore(score uint8) []byte {
	return []byte{score}
}

// WriteScore 将亮度分数写入w
func WriteScore(w io.Writer, score uint8) error {
	_, err := w.Write(EncodeScore(score))
	return err
}
