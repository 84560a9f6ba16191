package user

import (
	"crypto/rand"
	"math/big"
)

const (
	pwdLowers   = "abcdefghijkmnopqrstuvwxyz"
	pwdUppers   = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	pwdDigits   = "23456789"
	pwdSpecials = "!@#$%&*?"

	generatedPwdLen = 12
)

// GeneratePassword returns a random password satisfying the password policy.
func GeneratePassword() (string, error) {
	sets := []string{pwdLowers, pwdUppers, pwdDigits, pwdSpecials}
	all := pwdLowers + pwdUppers + pwdDigits + pwdSpecials

	pwd := make([]byte, 0, generatedPwdLen)
	for _, set := range sets {
		c, err := randChar(set)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}
	for len(pwd) < generatedPwdLen {
		c, err := randChar(all)
		if err != nil {
			return "", err
		}
		pwd = append(pwd, c)
	}

	// shuffle so the required classes are not always first
	for i := len(pwd) - 1; i > 0; i-- {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", err
		}
		j := int(n.Int64())
		pwd[i], pwd[j] = pwd[j], pwd[i]
	}
	return string(pwd), nil
}

func randChar(set string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(set))))
	if err != nil {
		return 0, err
	}
	return set[n.Int64()], nil
}
