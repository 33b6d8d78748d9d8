package bk

import "io"

// Encryptor optionally encrypts archive artifacts before they reach
// storage. Suffix is appended to artifact names so restores can tell
// encrypted artifacts apart; an empty suffix means encryption is off.
type Encryptor interface {
	Encrypt(r io.Reader, w io.Writer) error
	Decrypt(r io.Reader, w io.Writer) error
	Suffix() string
}

// NopEncryptor passes data through unchanged.
type NopEncryptor struct{}

func NewNopEncryptor() *NopEncryptor { return &NopEncryptor{} }

func (*NopEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (*NopEncryptor) Decrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (*NopEncryptor) Suffix() string { return "" }
