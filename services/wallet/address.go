package wallet

import (
	"strconv"
	"strings"

	"creator-ledger/pkg/errutil"

	"github.com/btcsuite/btcutil/base58"
	"github.com/ethereum/go-ethereum/common"
)

const tronVersion = 0x41

var (
	ErrUnsupportedCrypto = errutil.Sentinel(errutil.StatusValidationFailed, "UNSUPPORTED_CRYPTO_TYPE", "crypto type must be one of SOL, TRC20, BEP20")
	ErrAddressTooShort   = errutil.Sentinel(errutil.StatusValidationFailed, "ADDRESS_TOO_SHORT", "wallet address is too short")
	ErrInvalidAddress    = errutil.Sentinel(errutil.StatusValidationFailed, "INVALID_ADDRESS", "wallet address is not valid for the network")
)

func ParseCryptoType(s string) (CryptoType, error) {
	switch ct := CryptoType(strings.ToUpper(strings.TrimSpace(s))); ct {
	case SOL, TRC20, BEP20:
		return ct, nil
	}
	return "", ErrUnsupportedCrypto.With(errutil.WithDetails(errutil.Detail{Field: "crypto_type", Message: s}))
}

// ValidateAddress checks length and the network's address encoding:
// SOL is a base58 ed25519 key, TRC20 base58check with the Tron version
// byte and BEP20 a 0x-prefixed hex account.
func ValidateAddress(ct CryptoType, address string, minLength int) error {
	if len(address) < minLength {
		return ErrAddressTooShort.With(errutil.WithDetails(errutil.Detail{Field: "address", Message: "minimum length is " + strconv.Itoa(minLength)}))
	}

	switch ct {
	case SOL:
		if len(base58.Decode(address)) != 32 {
			return ErrInvalidAddress
		}
	case TRC20:
		payload, version, err := base58.CheckDecode(address)
		if err != nil || version != tronVersion || len(payload) != 20 {
			return ErrInvalidAddress
		}
	case BEP20:
		if !strings.HasPrefix(address, "0x") || !common.IsHexAddress(address) {
			return ErrInvalidAddress
		}
	default:
		return ErrUnsupportedCrypto
	}
	return nil
}
