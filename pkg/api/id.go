package api

import (
	"crypto/rand"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

const (
	idBodyLength = 24
	idAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// Workflow event items carry a lowercase UUID after the prefix.
var workflowItemIDPattern = regexp.MustCompile(`^wf_[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// NewResponseID returns "resp_" plus 24 random alphanumeric characters.
func NewResponseID() string {
	return "resp_" + randomBase62(idBodyLength)
}

// NewMessageID returns "msg_" plus 24 random alphanumeric characters.
func NewMessageID() string {
	return "msg_" + randomBase62(idBodyLength)
}

// NewWorkflowItemID returns "wf_" plus a random UUID.
func NewWorkflowItemID() string {
	return "wf_" + uuid.NewString()
}

// ValidateResponseID reports whether id is a well-formed response ID.
func ValidateResponseID(id string) bool {
	return validAlnumID(id, "resp_")
}

// ValidateMessageID reports whether id is a well-formed message item ID.
func ValidateMessageID(id string) bool {
	return validAlnumID(id, "msg_")
}

// ValidateWorkflowItemID reports whether id is a well-formed workflow
// event item ID.
func ValidateWorkflowItemID(id string) bool {
	return workflowItemIDPattern.MatchString(id)
}

func validAlnumID(id, prefix string) bool {
	body, ok := strings.CutPrefix(id, prefix)
	if !ok || len(body) != idBodyLength {
		return false
	}
	for i := 0; i < len(body); i++ {
		c := body[i]
		alnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !alnum {
			return false
		}
	}
	return true
}

// randomBase62 draws n characters from the 62-letter alphabet using
// rejection sampling so every character is equally likely.
func randomBase62(n int) string {
	out := make([]byte, 0, n)
	buf := make([]byte, n)
	for len(out) < n {
		if _, err := rand.Read(buf); err != nil {
			panic("reading random bytes: " + err.Error())
		}
		for _, b := range buf {
			if b >= 248 { // 4 * 62, the largest multiple of 62 below 256
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out)
}
