package archive

import (
	"fmt"
	"os"

	"github.com/ProtonMail/gopenpgp/v2/crypto"
)

// Sign produces a detached, armored PGP signature over archivePath using
// the given private key (armored), writing it to archivePath+".sig".
func Sign(archivePath string, armoredPrivateKey string) (string, error) {
	key, err := crypto.NewKeyFromArmored(armoredPrivateKey)
	if err != nil {
		return "", &Error{Kind: ErrSigningFailed, Detail: fmt.Sprintf("parsing private key: %v", err)}
	}

	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return "", &Error{Kind: ErrSigningFailed, Detail: fmt.Sprintf("building keyring: %v", err)}
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return "", &Error{Kind: ErrSigningFailed, Detail: err.Error()}
	}

	signature, err := keyRing.SignDetached(crypto.NewPlainMessage(data))
	if err != nil {
		return "", &Error{Kind: ErrSigningFailed, Detail: fmt.Sprintf("signing archive: %v", err)}
	}

	armored, err := signature.GetArmored()
	if err != nil {
		return "", &Error{Kind: ErrSigningFailed, Detail: fmt.Sprintf("armoring signature: %v", err)}
	}

	sigPath := archivePath + ".sig"
	if err := os.WriteFile(sigPath, []byte(armored), 0o644); err != nil {
		return "", &Error{Kind: ErrSigningFailed, Detail: err.Error()}
	}
	return sigPath, nil
}

// VerifySignature checks a detached, armored PGP signature over archivePath
// against the given public key (armored).
func VerifySignature(archivePath, armoredSignature, armoredPublicKey string) error {
	key, err := crypto.NewKeyFromArmored(armoredPublicKey)
	if err != nil {
		return &Error{Kind: ErrVerificationFailed, Detail: fmt.Sprintf("parsing public key: %v", err)}
	}

	keyRing, err := crypto.NewKeyRing(key)
	if err != nil {
		return &Error{Kind: ErrVerificationFailed, Detail: fmt.Sprintf("building keyring: %v", err)}
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		return &Error{Kind: ErrVerificationFailed, Detail: err.Error()}
	}

	signature, err := crypto.NewPGPSignatureFromArmored(armoredSignature)
	if err != nil {
		return &Error{Kind: ErrVerificationFailed, Detail: fmt.Sprintf("parsing signature: %v", err)}
	}

	if err := keyRing.VerifyDetached(crypto.NewPlainMessage(data), signature, 0); err != nil {
		return &Error{Kind: ErrVerificationFailed, Detail: fmt.Sprintf("signature verification failed: %v", err)}
	}
	return nil
}
