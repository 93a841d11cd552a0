package vdpf

import (
	"crypto/subtle"
	"fmt"

	"github.com/flashbots/spectrum/dpf"
)

// Insecure audits plaintext writes by comparing the writer-supplied password
// with the channel's key. Every worker reaches the same verdict on its own.
type Insecure struct {
	*dpf.Insecure
}

func NewInsecure(parties, channels, messageLen int) *Insecure {
	return &Insecure{Insecure: dpf.NewInsecure(parties, channels, messageLen)}
}

// GenAudit accepts empty keys and keys whose password matches the channel's.
func (v *Insecure) GenAudit(passwords []string, key *dpf.InsecureKey, password string) (bool, error) {
	if err := v.Validate(key); err != nil {
		return false, err
	}
	if len(passwords) != v.Channels {
		return false, fmt.Errorf("expected %d passwords, got %d", v.Channels, len(passwords))
	}
	if !key.Present {
		return true, nil
	}
	return subtle.ConstantTimeCompare([]byte(passwords[key.Index]), []byte(password)) == 1, nil
}

func (v *Insecure) CheckAudit(verdicts []bool) bool {
	if len(verdicts) != v.Parties {
		return false
	}
	for _, ok := range verdicts {
		if !ok {
			return false
		}
	}
	return true
}

func (v *Insecure) Verify(verdicts []bool) error {
	return verdict(v.CheckAudit(verdicts))
}
