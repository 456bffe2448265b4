package ratelimit

import (
	"strconv"
	"strings"
)

const DefaultKeyPrefix = "quotagate:"

// KeyBuilder builds counter keys of the form
// <prefix>ratelimit:<scope>:<identity>:<window start>:<window>
type KeyBuilder struct {
	Prefix string
}

func (kb KeyBuilder) Key(id Identity, b Boundaries, w Window) string {
	var sb strings.Builder
	sb.Grow(len(kb.Prefix) + len(id.Scope) + len(id.Value) + 40)
	sb.WriteString(kb.Prefix)
	sb.WriteString("ratelimit:")
	sb.WriteString(id.Scope)
	sb.WriteByte(':')
	sb.WriteString(id.Value)
	sb.WriteByte(':')
	sb.WriteString(strconv.FormatInt(b.Start(w), 10))
	sb.WriteByte(':')
	sb.WriteString(w.String())
	return sb.String()
}
