// internal/hierarchy/hierarchy_test.go
package hierarchy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSource = `
<hierarchy rotation="0">
  <android.widget.FrameLayout resource-id="android:id/content">
    <android.widget.Button resource-id="com.app:id/btn_login" text="Login"
      content-desc="login_button" displayed="true"/>
    <android.widget.EditText resource-id="com.app:id/et_email" hint="Email address"/>
    <android.widget.TextView text="Hidden banner" displayed="false"/>
  </android.widget.FrameLayout>
</hierarchy>`

func TestParseAndWalk(t *testing.T) {
	snap, err := Parse([]byte(sampleSource))
	require.NoError(t, err)

	var classes []string
	snap.Walk(func(n Node) {
		classes = append(classes, n.Class())
	})
	// The hidden TextView is skipped; everything else visits in document
	// order, root first.
	assert.Equal(t, []string{
		"hierarchy",
		"android.widget.FrameLayout",
		"android.widget.Button",
		"android.widget.EditText",
	}, classes)
	assert.Equal(t, 4, snap.Len())
}

func TestNodeAttributes(t *testing.T) {
	snap, err := Parse([]byte(sampleSource))
	require.NoError(t, err)

	var button, input Node
	snap.Walk(func(n Node) {
		switch n.ResourceID() {
		case "com.app:id/btn_login":
			button = n
		case "com.app:id/et_email":
			input = n
		}
	})

	require.NotNil(t, button.elem)
	require.NotNil(t, input.elem)

	assert.Equal(t, "Login", button.Text())
	assert.Equal(t, "login_button", button.ContentDesc())
	assert.True(t, button.Displayed())

	assert.Equal(t, "Email address", input.Hint())
	assert.Empty(t, input.Text())
	assert.True(t, input.Displayed(), "missing displayed attribute counts as visible")
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse([]byte("not xml at all <<"))
	assert.Error(t, err)
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	assert.Error(t, err)
}
