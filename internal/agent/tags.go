package agent

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gyuho/avalanche-ops/internal/naming"
)

// Tag keys stamped on every instance by the launch template. The agent
// reads its entire configuration hand-off from them.
const (
	TagID           = "ID"
	TagNodeKind     = "NODE_KIND"
	TagArchType     = "ARCH_TYPE"
	TagOSType       = "OS_TYPE"
	TagKMSKeyARN    = "KMS_CMK_ARN"
	TagS3BucketName = "S3_BUCKET_NAME"
)

// Tags is the typed view of the instance tags the agent requires.
type Tags struct {
	ID           string
	NodeKind     naming.NodeKind
	ArchType     string
	OSType       string
	KMSKeyARN    string
	S3BucketName string
}

// MissingTagsError reports instance tags the agent cannot run without.
// All missing keys are reported at once so a broken launch template
// shows up in a single log line.
type MissingTagsError struct {
	Keys []string
}

func (e *MissingTagsError) Error() string {
	return fmt.Sprintf("instance is missing required tags: %s", strings.Join(e.Keys, ", "))
}

// ParseTags builds the typed tag view from the raw instance tag map.
func ParseTags(raw map[string]string) (*Tags, error) {
	var missing []string
	get := func(key string) string {
		value, ok := raw[key]
		if !ok || value == "" {
			missing = append(missing, key)
		}
		return value
	}

	tags := &Tags{
		ID:           get(TagID),
		ArchType:     get(TagArchType),
		OSType:       get(TagOSType),
		KMSKeyARN:    get(TagKMSKeyARN),
		S3BucketName: get(TagS3BucketName),
	}

	kindValue := get(TagNodeKind)
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingTagsError{Keys: missing}
	}

	kind, err := naming.ParseNodeKind(kindValue)
	if err != nil {
		return nil, fmt.Errorf("invalid %s tag: %w", TagNodeKind, err)
	}
	tags.NodeKind = kind
	return tags, nil
}
