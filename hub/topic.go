// File: hub/topic.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package hub

import (
	"fmt"
	"regexp"

	"github.com/momentics/rcom/api"
)

var topicPattern = regexp.MustCompile(`^[a-z][a-z-]{2,64}$`)

// ValidTopic reports whether topic is a lowercase name of 3 to 65
// characters made of letters and dashes, starting with a letter.
func ValidTopic(topic string) bool {
	return topicPattern.MatchString(topic)
}

func checkTopic(topic string) error {
	if !ValidTopic(topic) {
		return fmt.Errorf("%w: %q", api.ErrInvalidTopic, topic)
	}
	return nil
}
