package naming

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	name, err := Encode("field1", 2, 3, None)
	require.NoError(t, err)
	assert.Equal(t, "field1_2_3_patch", name)

	name, err = Encode("img_20210903_D1_3", 0, 11, Predicted)
	require.NoError(t, err)
	assert.Equal(t, "img_20210903_D1_3_0_11_patch_predicted", name)
}

func TestRoundTrip(t *testing.T) {
	identifiers := []string{
		"field1",
		"img_20210903_D1_3",
		"Platte_20230712_Sorghum_004",
		"a",
		"7_8_9",
		"name.with.dots",
		"patchwork_field",
	}
	suffixes := []Suffix{None, Predicted, GroundTruth}

	for _, id := range identifiers {
		for _, s := range suffixes {
			for _, rc := range [][2]int{{0, 0}, {1, 0}, {0, 1}, {12, 345}} {
				t.Run(fmt.Sprintf("%s/%s/%d_%d", id, s, rc[0], rc[1]), func(t *testing.T) {
					name, err := Encode(id, rc[0], rc[1], s)
					require.NoError(t, err)

					p, err := Decode(name)
					require.NoError(t, err)
					assert.Equal(t, Parsed{Identifier: id, Row: rc[0], Col: rc[1], Suffix: s}, p)

					got, err := Identifier(name)
					require.NoError(t, err)
					assert.Equal(t, p.Identifier, got)
				})
			}
		}
	}
}

func TestEncodeRejectsAmbiguousIdentifiers(t *testing.T) {
	for _, id := range []string{"", "patch", "my_patch", "patch_1", "a_patch_b"} {
		_, err := Encode(id, 0, 0, None)
		assert.ErrorIs(t, err, ErrInvalidIdentifier, "identifier %q", id)
	}

	_, err := Encode("field", -1, 0, None)
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = Encode("field", 0, 0, Suffix("a_b"))
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestDecodeMalformed(t *testing.T) {
	names := []string{
		"",
		"field1_0_0",
		"field1_0_0_tile",
		"field1_x_0_patch",
		"field1_0_y_patch",
		"field1_-1_0_patch",
		"field1_0_+2_patch",
		"0_0_patch",
		"_0_0_patch",
		"field1_0_0_patch_predicted_extra",
	}
	for _, name := range names {
		_, err := Decode(name)
		assert.ErrorIs(t, err, ErrMalformedName, "Decode(%q)", name)

		_, err = Identifier(name)
		assert.ErrorIs(t, err, ErrMalformedName, "Identifier(%q)", name)
	}
}

func TestIdentifierIgnoresPatchLikeSegments(t *testing.T) {
	id, err := Identifier("patches_a_4_5_patch_predicted")
	require.NoError(t, err)
	assert.Equal(t, "patches_a", id)
}

func TestFilenameHelpers(t *testing.T) {
	assert.Equal(t, "field1_0_0_patch.png", WithExt("field1_0_0_patch"))
	assert.Equal(t, "field1_0_0_patch", StripExt("/tmp/x/field1_0_0_patch.png"))

	assert.Equal(t, "my_field__2024_", Sanitize("my field (2024)"))
	assert.Equal(t, "north_field", IdentifierFromFilename("/uploads/north field.tif"))
	assert.Equal(t, "img_20210903_D1_3", IdentifierFromFilename("img_20210903_D1_3.png"))
}
