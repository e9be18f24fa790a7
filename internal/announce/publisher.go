package announce

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Publisher posts text and returns the post id.
type Publisher interface {
	Publish(ctx context.Context, text string) (postID string, err error)
}

// ConsolePublisher writes posts to a writer instead of a social network.
type ConsolePublisher struct {
	Out io.Writer
}

// Publish prints the post between separators.
func (c *ConsolePublisher) Publish(_ context.Context, text string) (postID string, err error) {
	postID = fmt.Sprintf("console-%d", time.Now().UnixNano())

	_, err = fmt.Fprintf(c.Out, "----- announcement %s -----\n%s\n-----\n", postID, text)
	if err != nil {
		PublishTotal.WithLabelValues("console", "error").Inc()
		return "", fmt.Errorf("write announcement: %w", err)
	}

	PublishTotal.WithLabelValues("console", "ok").Inc()
	return postID, nil
}
