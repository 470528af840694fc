//go:build ios || android

// Package mobile exposes the bootstrap to the host platform.
//
// Android Build:
//
//	gomobile bind -target android -o ctdboot.aar ./mobile
//
// The host activity loads the engine library in its static initializer,
// then calls SetPackagePath(getPackageResourcePath()) from attach and
// Start() from its start callback.
package mobile

import (
	"log"
	"runtime"

	"github.com/agiangrant/ctdboot"
	"github.com/agiangrant/ctdboot/internal/hostctx"
	"github.com/agiangrant/ctdboot/internal/logutil"
	"go.uber.org/zap"
)

// SetPackagePath publishes the installed package path to the bridge.
func SetPackagePath(path string) {
	hostctx.SharedBridge.Publish(path)
}

// Start boots the engine with ctdboot.toml from the working directory, or
// the defaults when there is none. A failure is fatal: the engine cannot
// run without its resources.
func Start() {
	runtime.LockOSThread()
	logutil.InitLogger()

	cfg, err := ctdboot.LoadConfig("")
	if err != nil {
		log.Fatal(err)
	}
	app, err := ctdboot.Boot(cfg)
	if err != nil {
		zap.L().Error("Engine bootstrap failed", zap.Error(err))
		log.Fatal(err)
	}
	zap.L().Info("Engine bootstrap complete",
		zap.String("archive", app.PackagePath()),
		zap.Stringer("state", app.State()))
}

// State returns the bootstrap state name.
func State() string {
	return ctdboot.ProcessState().String()
}
