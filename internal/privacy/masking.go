package privacy

import "strings"

// MaskID masks an opaque identifier (conversation, sender or message
// id) showing only the last 4 characters. UUID-style ids keep their
// dash structure so log lines remain correlatable by shape.
// Example: "7f3a2b10-...-9c21" -> "********-...-9c21"
func MaskID(id string) string {
	if id == "" {
		return ""
	}

	if strings.Contains(id, "-") {
		parts := strings.Split(id, "-")
		for i, part := range parts {
			if i == len(parts)-1 && len(part) > 4 {
				parts[i] = strings.Repeat("*", len(part)-4) + part[len(part)-4:]
				continue
			}
			parts[i] = strings.Repeat("*", len(part))
		}
		return strings.Join(parts, "-")
	}

	if len(id) <= 4 {
		return strings.Repeat("*", len(id))
	}
	return strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}

// MaskPayload replaces an encrypted payload with a fixed mask; the
// ciphertext itself never belongs in logs.
func MaskPayload(payload string) string {
	if payload == "" {
		return ""
	}
	return strings.Repeat("*", 8)
}
