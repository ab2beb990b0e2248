package queue

// DefaultGalleryLimit is the platform maximum of media items per published
// post. Galleries above this size must be published as multiple posts.
const DefaultGalleryLimit = 20

// Split turns one submission into publish-sized parts. Submissions at or
// under the limit become a single part with index 0 holding the full media
// list. Larger submissions become ceil(n/limit) parts indexed 1..k, each
// holding a contiguous slice assigned left to right, so concatenating the
// parts in index order reproduces the submission's media order exactly.
//
// Split is a pure function; submissions with no media yield no parts.
func Split(sub Submission, limit int) []Part {
	if limit < 1 {
		limit = DefaultGalleryLimit
	}
	n := len(sub.MediaItems)
	if n == 0 {
		return nil
	}
	if n <= limit {
		return []Part{{
			Owner:        sub.Username,
			TitlePreview: sub.TitlePreview,
			Index:        0,
			Key:          PartKey(sub.Username, 0),
			Media:        append([]string(nil), sub.MediaItems...),
		}}
	}
	count := (n + limit - 1) / limit
	parts := make([]Part, 0, count)
	for i := 0; i < count; i++ {
		lo := i * limit
		hi := lo + limit
		if hi > n {
			hi = n
		}
		parts = append(parts, Part{
			Owner:        sub.Username,
			TitlePreview: sub.TitlePreview,
			Index:        i + 1,
			Key:          PartKey(sub.Username, i+1),
			Media:        append([]string(nil), sub.MediaItems[lo:hi]...),
		})
	}
	return parts
}
