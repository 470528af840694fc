//go:build android

package mobile

import (
	"testing"

	"github.com/agiangrant/ctdboot"
	"github.com/agiangrant/ctdboot/internal/archive/archivetest"
	"github.com/agiangrant/ctdboot/internal/hostctx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPackagePath(t *testing.T) {
	t.Cleanup(func() { hostctx.SharedBridge.Publish("") })

	apk := archivetest.WriteAPK(t, t.TempDir(), "data/app/com.example.demo-1/base.apk", map[string]string{
		"assets/gui/scene.json": `{"root":"main"}`,
	})

	_, err := ctdboot.ResolvePackagePath(ctdboot.DefaultConfig(), ctdboot.PlatformAndroid)
	assert.True(t, errors.Is(err, hostctx.ErrPathUnavailable))

	SetPackagePath(apk)
	assert.True(t, hostctx.SharedBridge.Published())

	got, err := ctdboot.ResolvePackagePath(ctdboot.DefaultConfig(), ctdboot.PlatformAndroid)
	require.NoError(t, err)
	assert.Equal(t, apk, got)
}

func TestStateBeforeStart(t *testing.T) {
	assert.Equal(t, "unloaded", State())
}
