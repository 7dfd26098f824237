package core

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthereumSignatureVerifier is the default SignatureVerifier: it recovers the
// signer's address from a 65-byte (r, s, v) ECDSA signature over the
// Keccak-256 digest of the signed message and checks it against the claimed
// address. It satisfies every Transfer/TransferToNew/Withdraw/ForcedExit/
// Close/ChangePubKey signature check the engine needs, standalone.
type EthereumSignatureVerifier struct{}

// NewEthereumSignatureVerifier returns the default SignatureVerifier.
func NewEthereumSignatureVerifier() *EthereumSignatureVerifier {
	return &EthereumSignatureVerifier{}
}

// Verify reports whether sig is a valid ECDSA signature over message,
// recovering to address.
func (EthereumSignatureVerifier) Verify(message []byte, address Address, sig []byte) bool {
	if len(sig) != 65 {
		return false
	}
	digest := crypto.Keccak256(message)
	// crypto.Ecrecover wants a recovery id in [0, 1]; Ethereum wallets
	// commonly produce v in {27, 28}.
	normalized := make([]byte, 65)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return false
	}
	recovered := crypto.PubkeyToAddress(*pub)
	return common.BytesToAddress(address[:]) == recovered
}

// SignMessage signs message's Keccak-256 digest with priv, returning the
// 65-byte (r, s, v) signature, v in {27, 28}. It exists to let tests and
// tooling construct valid signed ops without an external wallet.
func SignMessage(priv []byte, message []byte) ([]byte, error) {
	key, err := crypto.ToECDSA(priv)
	if err != nil {
		return nil, err
	}
	digest := crypto.Keccak256(message)
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
