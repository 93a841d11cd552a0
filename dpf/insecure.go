package dpf

// Insecure is a DPF whose keys carry the point in the clear. It exists so the
// write/audit pipeline can be exercised and benchmarked without cryptography.
type Insecure struct {
	Parties    int
	Channels   int
	MessageLen int
}

// InsecureKey is either empty or holds the whole point.
type InsecureKey struct {
	Present bool
	Index   int
	Message []byte
}

func NewInsecure(parties, channels, messageLen int) *Insecure {
	return &Insecure{Parties: parties, Channels: channels, MessageLen: messageLen}
}

func (d *Insecure) NumKeys() int { return d.Parties }

// Gen puts the point into the last key; all others are empty.
func (d *Insecure) Gen(msg []byte, idx int) ([]*InsecureKey, error) {
	if err := checkIndex(idx, d.Channels); err != nil {
		return nil, err
	}
	padded, err := padMessage(msg, d.MessageLen)
	if err != nil {
		return nil, err
	}
	keys := d.GenEmpty()
	keys[len(keys)-1] = &InsecureKey{Present: true, Index: idx, Message: padded}
	return keys, nil
}

func (d *Insecure) GenEmpty() []*InsecureKey {
	keys := make([]*InsecureKey, d.Parties)
	for i := range keys {
		keys[i] = &InsecureKey{}
	}
	return keys
}

func (d *Insecure) Validate(key *InsecureKey) error {
	if key == nil {
		return invalidKey("nil key")
	}
	if !key.Present {
		return nil
	}
	if key.Index < 0 || key.Index >= d.Channels {
		return invalidKey("index %d outside %d channels", key.Index, d.Channels)
	}
	if len(key.Message) != d.MessageLen {
		return invalidKey("message has %d bytes, expected %d", len(key.Message), d.MessageLen)
	}
	return nil
}

func (d *Insecure) EvalFull(key *InsecureKey) ([][]byte, error) {
	if err := d.Validate(key); err != nil {
		return nil, err
	}
	res := make([][]byte, d.Channels)
	for i := range res {
		res[i] = make([]byte, d.MessageLen)
	}
	if key.Present {
		copy(res[key.Index], key.Message)
	}
	return res, nil
}
