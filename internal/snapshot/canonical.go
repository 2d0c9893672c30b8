package snapshot

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// MarshalCanonical produces deterministic JSON for a snapshot: fixed field
// order, services sorted by name, instances sorted by ID, attribute keys
// sorted, no HTML escaping. Two snapshots describing the same registry
// state always serialize to the same bytes.
//
// The snapshot must already be normalized; MarshalCanonical does not sort
// or NFC-fold on its own.
func MarshalCanonical(s *Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if s.Sequence != 0 {
		fmt.Fprintf(&buf, `"sequence":%d,`, s.Sequence)
	}
	buf.WriteString(`"services":[`)
	for i := range s.Services {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := marshalService(&buf, &s.Services[i]); err != nil {
			return nil, err
		}
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// Checksum returns the hex SHA-256 of the canonical serialization. Logged
// alongside the snapshot ID so operators can tell identical redeliveries
// apart from genuinely new content.
func Checksum(s *Snapshot) (string, error) {
	data, err := MarshalCanonical(s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func marshalService(buf *bytes.Buffer, svc *ServiceRecord) error {
	buf.WriteByte('{')
	if err := writeStringField(buf, "name", svc.Name); err != nil {
		return err
	}
	if svc.DependsOn != "" {
		buf.WriteByte(',')
		if err := writeStringField(buf, "depends_on", svc.DependsOn); err != nil {
			return err
		}
	}
	if len(svc.Instances) > 0 {
		buf.WriteString(`,"instances":[`)
		for i := range svc.Instances {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := marshalInstance(buf, &svc.Instances[i]); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}
	buf.WriteByte('}')
	return nil
}

func marshalInstance(buf *bytes.Buffer, inst *InstanceRecord) error {
	buf.WriteByte('{')
	if err := writeStringField(buf, "id", inst.ID); err != nil {
		return err
	}
	if len(inst.Attributes) > 0 {
		buf.WriteString(`,"attributes":{`)
		keys := make([]string, 0, len(inst.Attributes))
		for k := range inst.Attributes {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSONString(buf, inst.Attributes[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return nil
}

func writeStringField(buf *bytes.Buffer, key, val string) error {
	if err := writeJSONString(buf, key); err != nil {
		return err
	}
	buf.WriteByte(':')
	return writeJSONString(buf, val)
}

// writeJSONString encodes one string without HTML escaping.
func writeJSONString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode string %q: %w", s, err)
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
