package dig_container

import (
	"log"
	"os"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echodash "github.com/trezcool/attendly/apps/dashboard/echo"
	"github.com/trezcool/attendly/core"
	"github.com/trezcool/attendly/core/attendance"
	"github.com/trezcool/attendly/core/device"
	camerasvc "github.com/trezcool/attendly/services/camera"
	logsvc "github.com/trezcool/attendly/services/logger"
	notifysvc "github.com/trezcool/attendly/services/notify"
	snapshotsvc "github.com/trezcool/attendly/services/snapshot"
	fileprefs "github.com/trezcool/attendly/storage/prefs/file"
	"github.com/trezcool/attendly/storage/remote"
)

type RemoteLoggerParam struct {
	dig.In
	Logger core.Logger `name:"remoteLogger"`
}

// SelectorResult is the camera Selector with the buffer receiving its notifications.
type SelectorResult struct {
	dig.Out
	Selector *device.Selector
	Notes    *notifysvc.Buffer
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DASH : ", log.LstdFlags)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRemoteLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "REMOTE : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	return logsvc.NewRollbarLogger(stdLogger, conf)
}

func newRemoteClient(conf *core.Config, loggerParam RemoteLoggerParam) *remote.Client {
	return remote.NewClient(conf, loggerParam.Logger)
}

func newPreferences(conf *core.Config, logger core.Logger) device.Preferences {
	prefs, err := fileprefs.Open(conf.Prefs.Path)
	if err != nil {
		logger.Fatal("opening preferences", err)
	}
	return prefs
}

func newSelector(source device.Source, prefs device.Preferences, logger core.Logger) SelectorResult {
	notes := notifysvc.NewBuffer(0)
	sel := device.NewSelector(device.Options{
		Source:   source,
		Prefs:    prefs,
		Notifier: notes,
		Logger:   logger,
		OnSelect: func(s device.Selection) {
			logger.Info("camera selected", map[string]interface{}{"device_id": s.DeviceID, "index": s.Index})
		},
	})
	return SelectorResult{Selector: sel, Notes: notes}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func newValidator(translator ut.Translator) *validator.Validate {
	return core.NewValidator(translator)
}

func newServerOptions(
	conf *core.Config,
	client *remote.Client,
	selector *device.Selector,
	notes *notifysvc.Buffer,
	validate *validator.Validate,
	translator ut.Translator,
	logger core.Logger,
) *echodash.Options {
	var repo attendance.Repository = client
	var recognizer attendance.Recognizer = client
	return &echodash.Options{
		Address:     conf.Server.Host,
		Debug:       conf.Debug,
		TestMode:    conf.TestMode,
		Repo:        repo,
		Recognizer:  recognizer,
		Selector:    selector,
		CameraNotes: notes,
		Snapshots:   snapshotsvc.Writer{MaxWidth: 1280},
		Validate:    validate,
		Translator:  translator,
		Logger:      logger,
	}
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newRemoteLogger, dig.Name("remoteLogger")))
	must(c.Provide(newRemoteClient))
	must(c.Provide(newPreferences))
	must(c.Provide(camerasvc.NewSource))
	must(c.Provide(newSelector))
	must(c.Provide(newTranslator))
	must(c.Provide(newValidator))
	must(c.Provide(newServerOptions))
	must(c.Provide(echodash.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
