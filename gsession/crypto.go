package gsession

import (
	"crypto/rand"

	"golang.org/x/crypto/nacl/box"
)

// keyPair is the server's NaCl keypair, generated once at startup and
// never reassigned afterwards.
type keyPair struct {
	public  *[32]byte
	private *[32]byte
}

func generateKeyPair() (keyPair, error) {
	pub, priv, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return keyPair{}, err
	}
	return keyPair{public: pub, private: priv}, nil
}
