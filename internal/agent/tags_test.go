package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyuho/avalanche-ops/internal/naming"
)

func fullTagMap() map[string]string {
	return map[string]string{
		TagID:           "demo-cluster",
		TagNodeKind:     "anchor",
		TagArchType:     "amd64",
		TagOSType:       "ubuntu20.04",
		TagKMSKeyARN:    "arn:aws:kms:us-west-2:123:key/abc",
		TagS3BucketName: "demo-bucket",
	}
}

func TestParseTags(t *testing.T) {
	tags, err := ParseTags(fullTagMap())
	require.NoError(t, err)

	assert.Equal(t, "demo-cluster", tags.ID)
	assert.Equal(t, naming.KindAnchor, tags.NodeKind)
	assert.Equal(t, "demo-bucket", tags.S3BucketName)
}

func TestParseTagsReportsAllMissingKeys(t *testing.T) {
	raw := fullTagMap()
	delete(raw, TagID)
	delete(raw, TagKMSKeyARN)
	raw[TagS3BucketName] = ""

	_, err := ParseTags(raw)
	var missing *MissingTagsError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{TagID, TagKMSKeyARN, TagS3BucketName}, missing.Keys)
}

func TestParseTagsRejectsUnknownNodeKind(t *testing.T) {
	raw := fullTagMap()
	raw[TagNodeKind] = "witness"

	_, err := ParseTags(raw)
	var unknown *naming.UnknownKindError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "witness", unknown.Value)
}
