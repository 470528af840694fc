package engine

import (
	"io/fs"
	"testing"

	"github.com/agiangrant/ctdboot/internal/archive/archivetest"
	"github.com/agiangrant/ctdboot/internal/ffi"
	"github.com/agiangrant/ctdboot/internal/ffi/ffitest"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sceneFiles = map[string]string{
	"assets/gui/scene.json": `{"root":"main"}`,
}

// engines returns one engine of each kind, each freshly loaded.
func engines(t *testing.T) map[string]Engine {
	t.Helper()

	fake := ffitest.New()
	t.Cleanup(func() { fake.Close() })
	native, err := NativeLoader{FFI: &ffi.Loader{Open: fake.Opener(nil)}}.Load("centered_engine")
	require.NoError(t, err)

	embedded, err := EmbeddedLoader{}.Load("centered_engine")
	require.NoError(t, err)
	t.Cleanup(func() { embedded.(*Embedded).Close() })

	return map[string]Engine{"native": native, "embedded": embedded}
}

func TestEngineLifecycle(t *testing.T) {
	apk := archivetest.WriteAPK(t, t.TempDir(), "base.apk", sceneFiles)

	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			assert.NotEmpty(t, eng.Version())
			assert.False(t, eng.Started())

			require.NoError(t, eng.RegisterArchive(apk))
			require.NoError(t, eng.Start())
			assert.True(t, eng.Started())
			assert.True(t, errors.Is(eng.Start(), ErrAlreadyRunning))

			data, err := eng.ReadAsset("gui/scene.json")
			require.NoError(t, err)
			assert.Equal(t, `{"root":"main"}`, string(data))

			_, err = eng.ReadAsset("gui/absent.json")
			assert.True(t, errors.Is(err, fs.ErrNotExist), "err = %v", err)
		})
	}
}

func TestEngineRegisterTwice(t *testing.T) {
	apk := archivetest.WriteAPK(t, t.TempDir(), "base.apk", sceneFiles)

	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, eng.RegisterArchive(apk))
			once, err := eng.ReadAsset("gui/scene.json")
			require.NoError(t, err)

			require.NoError(t, eng.RegisterArchive(apk))
			twice, err := eng.ReadAsset("gui/scene.json")
			require.NoError(t, err)
			assert.Equal(t, once, twice)
		})
	}
}

func TestEngineAccessors(t *testing.T) {
	apk := archivetest.WriteAPK(t, t.TempDir(), "base.apk", sceneFiles)
	engs := engines(t)

	native := engs["native"].(*Native)
	require.NotNil(t, native.Module())
	assert.Equal(t, "centered_engine", native.Module().Name)
	assert.True(t, native.Module().CanReadAssets())

	embedded := engs["embedded"].(*Embedded)
	assert.Empty(t, embedded.Assets().Roots())
	require.NoError(t, embedded.RegisterArchive(apk))
	require.NoError(t, embedded.RegisterArchive(apk))
	assert.Equal(t, []string{apk}, embedded.Assets().Roots())
}

func TestEngineRegisterUnreadable(t *testing.T) {
	for name, eng := range engines(t) {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, eng.RegisterArchive("/nonexistent/base.apk"))
		})
	}
}

func TestNativeCodeErrors(t *testing.T) {
	fake := ffitest.New()
	defer fake.Close()
	fake.RegisterCode = -2

	eng, err := NativeLoader{FFI: &ffi.Loader{Open: fake.Opener(nil)}}.Load("centered_engine")
	require.NoError(t, err)

	err = eng.RegisterArchive("/data/app/com.example.demo-1/base.apk")
	var codeErr *CodeError
	require.True(t, errors.As(err, &codeErr))
	assert.Equal(t, int64(-2), codeErr.Code)
	assert.Contains(t, err.Error(), "archive not readable")
}

func TestNativeWithoutAssetReads(t *testing.T) {
	fake := ffitest.New()
	defer fake.Close()
	fake.Omit["centered_asset_read"] = true

	eng, err := NativeLoader{FFI: &ffi.Loader{Open: fake.Opener(nil)}}.Load("centered_engine")
	require.NoError(t, err)

	_, err = eng.ReadAsset("gui/scene.json")
	assert.True(t, errors.Is(err, ffi.ErrNotLoaded))
}

func TestNativeLoadFailure(t *testing.T) {
	_, err := NativeLoader{FFI: &ffi.Loader{Open: ffitest.MissingOpener}}.Load("centered_engine")
	assert.True(t, errors.Is(err, ffi.ErrModuleLoad))
}

func TestNilNativeModule(t *testing.T) {
	eng := NewNative(nil)
	assert.Empty(t, eng.Version())
	assert.True(t, errors.Is(eng.RegisterArchive("/tmp/base.apk"), ffi.ErrNotLoaded))
	assert.True(t, errors.Is(eng.Start(), ffi.ErrNotLoaded))
	assert.False(t, eng.Started())
}

func TestEmbeddedLoaderRejectsEmptyName(t *testing.T) {
	_, err := EmbeddedLoader{}.Load("")
	assert.Error(t, err)
}
