package utils

// ByteReader is implemented by bufio.Reader and bytes.Buffer.
type ByteReader interface {
	ReadByte() (byte, error)
	Read(p []byte) (n int, err error)
}

// ByteWriter is implemented by bytes.Buffer.
type ByteWriter interface {
	WriteByte(byte) error
	Write(p []byte) (n int, err error)
}
