// internal/queue/submission.go
//
// Core data model for the pending-post queue: submissions as the staging
// server reports them, and the publish-sized parts they are split into.

package queue

import "fmt"

// Submission is one pending queue entry: a batch of media items that a
// single queue owner has waiting for publication. Submissions are read
// from the staging server and discarded as soon as they are split into
// parts; nothing retains or mutates them.
type Submission struct {
	Username     string
	TitlePreview string
	MediaItems   []string
	MediaCount   int
}

// Part is a publish-sized slice of a submission's media, the unit that is
// actually sent to the publish gateway. Identity (Owner, Index, Key) is
// fixed at creation; Media shrinks when items are deleted on the server.
type Part struct {
	Owner        string
	TitlePreview string

	// Index is the 1-based position among sibling parts of the same
	// submission, or 0 when the whole submission fit under the limit.
	Index int

	// Key joins a part with its selection set and upload session, and is
	// stable across refresh cycles: the same owner and index always yield
	// the same key.
	Key string

	Media []string
}

// PartKey derives the stable identity for a part. Unsplit submissions key
// on the owner alone so the part survives refreshes under the same name.
func PartKey(owner string, index int) string {
	if index == 0 {
		return owner
	}
	return fmt.Sprintf("%s-%d", owner, index)
}
