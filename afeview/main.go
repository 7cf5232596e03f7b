package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/goafe/pkg/afe"
	"github.com/itohio/goafe/pkg/config"
	"github.com/itohio/goafe/pkg/sample"
	"github.com/itohio/goafe/pkg/scope"
	"github.com/itohio/goafe/pkg/session"
	"github.com/itohio/goafe/pkg/technique"
	"github.com/itohio/goafe/pkg/trace"
)

func main() {
	var (
		portFlag      = flag.String("p", "", "Serial port override (e.g., COM3 or /dev/ttyACM0)")
		configFlag    = flag.String("config", "config.yaml", "Configuration file path")
		mockFlag      = flag.Bool("mock", false, "Use mocked device instead of the configured transport")
		techniqueFlag = flag.String("technique", "cv", "Technique selected at startup")
		debugFlag     = flag.Bool("debug", false, "Enable debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *debugFlag {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.Load(*configFlag)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *portFlag != "" {
		cfg.Device.Port = *portFlag
	}
	if *mockFlag {
		cfg.Device.Transport = "mock"
	}
	if !slices.Contains(technique.Techniques, *techniqueFlag) {
		slog.Error("unknown technique", "technique", *techniqueFlag, "known", technique.Techniques)
		os.Exit(1)
	}

	application := app.NewWithID("com.itohio.goafe")

	window := application.NewWindow("AFE Viewer")
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	state := &appState{
		cfg:        cfg,
		configFile: *configFlag,
		technique:  *techniqueFlag,
		recorder:   trace.New(0),
		window:     window,
	}

	state.scopeWidget = scope.New(axisFor(state.technique))
	state.recorder.OnUpdate(state.throttledUpdate)

	toolbar := createToolbar(state)
	window.SetContent(container.NewBorder(toolbar, nil, nil, nil, state.scopeWidget))
	window.SetOnClosed(func() {
		stopMeasurement(state)
		disconnect(state)
	})
	window.ShowAndRun()
}

// measurement tracks the goroutines of a running technique for shutdown.
type measurement struct {
	cancel   context.CancelFunc
	recorded chan struct{} // Closed when the recorder or word reader exits
	done     <-chan error
}

// appState holds the application state.
type appState struct {
	cfg        *config.Config
	configFile string
	technique  string

	session     *session.Session
	recorder    *trace.Recorder
	scopeWidget *scope.ScopeWidget
	window      fyne.Window

	connectBtn *widget.Button
	runBtn     *widget.Button
	stopBtn    *widget.Button

	run *measurement // Current run (nil when idle)
	throttle
}

func axisFor(name string) scope.Axis {
	if name == "ca" {
		return scope.AxisTime
	}
	return scope.AxisPotential
}

// createToolbar creates the toolbar with Connect, Settings, technique
// selection and Run/Stop buttons.
func createToolbar(state *appState) fyne.CanvasObject {
	state.connectBtn = widget.NewButtonWithIcon("", theme.LoginIcon(), func() {
		handleConnect(state)
	})

	settingsBtn := widget.NewButtonWithIcon("", theme.SettingsIcon(), func() {
		showSettingsDialog(state)
	})

	techSelect := widget.NewSelect(technique.Techniques, func(selected string) {
		state.technique = selected
		state.scopeWidget.SetAxis(axisFor(selected))
	})
	techSelect.SetSelected(state.technique)

	state.runBtn = widget.NewButtonWithIcon("", theme.MediaPlayIcon(), func() {
		handleRun(state)
	})
	state.runBtn.Disable()

	state.stopBtn = widget.NewButtonWithIcon("", theme.MediaStopIcon(), func() {
		stopMeasurement(state)
	})
	state.stopBtn.Disable()

	return container.NewBorder(
		nil,
		nil,
		container.NewHBox(state.connectBtn, settingsBtn),
		container.NewHBox(techSelect, state.runBtn, state.stopBtn),
		nil,
	)
}

// handleConnect opens or closes the session.
func handleConnect(state *appState) {
	if state.session != nil {
		stopMeasurement(state)
		disconnect(state)
		state.runBtn.Disable()
		state.scopeWidget.SetStatus("disconnected")
		return
	}

	s, err := session.Open(context.Background(), state.cfg)
	if err != nil {
		dialog.ShowError(fmt.Errorf("failed to connect (%s): %w", state.cfg.Device.Transport, err), state.window)
		return
	}
	state.session = s
	state.runBtn.Enable()
	state.scopeWidget.SetStatus(fmt.Sprintf("connected via %s", state.cfg.Device.Transport))
}

func disconnect(state *appState) {
	if state.session == nil {
		return
	}
	if err := state.session.Close(); err != nil {
		slog.Warn("error closing session", "error", err)
	}
	state.session = nil
}

// handleRun starts the selected technique and wires its output into the
// recorder, or into the status line for techniques without a current trace.
func handleRun(state *appState) {
	if state.session == nil || state.run != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m, err := state.session.Measure(ctx, state.technique)
	if err != nil {
		cancel()
		dialog.ShowError(fmt.Errorf("failed to start %s: %w", state.technique, err), state.window)
		return
	}
	conv, err := state.session.Converter(m.Setup)
	if err != nil {
		cancel()
		dialog.ShowError(err, state.window)
		return
	}

	state.recorder.Reset()
	state.scopeWidget.UpdateData(nil, trace.Bounds{})
	state.scopeWidget.SetStatus(fmt.Sprintf("%s running, %d samples", m.Setup.Technique, m.Setup.Total))

	run := &measurement{cancel: cancel, recorded: make(chan struct{}), done: m.Done}
	if conv != nil {
		go func() {
			defer close(run.recorded)
			state.recorder.Record(conv(m.Words))
		}()
	} else {
		go func() {
			defer close(run.recorded)
			readWords(state, m.Words)
		}()
	}
	state.run = run
	state.runBtn.Disable()
	state.stopBtn.Enable()

	go func() {
		<-run.recorded
		err := <-run.done
		UpdateWidgetOnMainThread(func() { finishMeasurement(state, run, err) })
	}()
}

// readWords shows the latest tagged result of runs that are not plotted.
func readWords(state *appState, words <-chan uint32) {
	n := 0
	for w := range words {
		n++
		tag, data := afe.SplitFIFOWord(w)
		var text string
		switch tag {
		case afe.TagTemperature:
			text = fmt.Sprintf("%.2f °C", sample.Celsius(data))
		case afe.TagDFTReal, afe.TagDFTImag:
			text = fmt.Sprintf("dft %d results", n/2)
		default:
			text = fmt.Sprintf("%d words", n)
		}
		if state.allow() {
			UpdateWidgetOnMainThread(func() { state.scopeWidget.SetStatus(text) })
		}
	}
}

// stopMeasurement cancels the current run and waits for its pipeline to
// drain.
func stopMeasurement(state *appState) {
	run := state.run
	if run == nil {
		return
	}
	run.cancel()
	<-run.recorded
}

func finishMeasurement(state *appState, run *measurement, err error) {
	if state.run != run {
		return
	}
	state.run = nil
	run.cancel()
	state.scopeWidget.UpdateData(state.recorder.Samples(), state.recorder.Bounds())
	state.stopBtn.Disable()
	if state.session != nil {
		state.runBtn.Enable()
	}
	if err != nil {
		dialog.ShowError(fmt.Errorf("run failed (%s): %w", afe.CodeOf(err), err), state.window)
		state.scopeWidget.SetStatus("faulted")
		return
	}
	state.scopeWidget.SetStatus(fmt.Sprintf("done, %d samples", len(state.recorder.Samples())))
}
