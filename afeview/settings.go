package main

import (
	"fmt"
	"strconv"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/goafe/pkg/afe"
)

// showSettingsDialog displays a settings dialog with tabs for all configuration options.
func showSettingsDialog(state *appState) {
	tabs := container.NewAppTabs(
		createDeviceTab(state),
		createPathTab(state),
		createCVTab(state),
		createDPVTab(state),
		createCATab(state),
		createMockTab(state),
	)

	content := container.NewBorder(nil, nil, nil, nil, tabs)
	content.Resize(fyne.NewSize(600, 500))

	d := dialog.NewCustom("Settings", "Close", content, state.window)
	d.Resize(fyne.NewSize(600, 500))
	d.Show()
}

// save writes the configuration back to the file it was loaded from.
func save(state *appState) {
	if err := state.cfg.Save(state.configFile); err != nil {
		dialog.ShowError(fmt.Errorf("failed to save config: %w", err), state.window)
	}
}

// floatEntry returns an entry showing v and a function that parses it back
// into v when the text is a valid number.
func floatEntry(v *float64, format string) (*widget.Entry, func()) {
	e := widget.NewEntry()
	e.SetText(fmt.Sprintf(format, *v))
	return e, func() {
		if f, err := strconv.ParseFloat(e.Text, 64); err == nil {
			*v = f
		}
	}
}

// form builds a settings form from labelled float fields.
func form(state *appState, items []*widget.FormItem, apply ...func()) *widget.Form {
	return &widget.Form{
		Items: items,
		OnSubmit: func() {
			for _, a := range apply {
				a()
			}
			save(state)
		},
	}
}

// createDeviceTab creates the transport configuration tab. Changes apply on
// the next connect.
func createDeviceTab(state *appState) *container.TabItem {
	d := &state.cfg.Device

	transport := widget.NewSelect([]string{"mock", "serial", "spi"}, nil)
	transport.SetSelected(d.Transport)

	ports, err := afe.Ports()
	portOptions := []string{}
	if err == nil {
		for _, port := range ports {
			portOptions = append(portOptions, port.Name)
		}
	}
	portSelect := widget.NewSelectEntry(portOptions)
	portSelect.SetText(d.Port)

	baudEntry := widget.NewEntry()
	baudEntry.SetText(strconv.Itoa(d.BaudRate))

	spiEntry := widget.NewEntry()
	spiEntry.SetText(d.SPIPort)

	irqEntry := widget.NewEntry()
	irqEntry.SetText(d.IRQPin)

	lfosc, applyLFOSC := floatEntry(&d.LFOSCFrequency, "%.1f")

	f := form(state, []*widget.FormItem{
		{Text: "Transport", Widget: transport},
		{Text: "Serial Port", Widget: portSelect},
		{Text: "Baud Rate", Widget: baudEntry},
		{Text: "SPI Port", Widget: spiEntry},
		{Text: "IRQ Pin", Widget: irqEntry},
		{Text: "LFOSC (Hz)", Widget: lfosc},
	}, applyLFOSC, func() {
		if transport.Selected != "" {
			d.Transport = transport.Selected
		}
		d.Port = portSelect.Text
		if baud, err := strconv.Atoi(baudEntry.Text); err == nil {
			d.BaudRate = baud
		}
		d.SPIPort = spiEntry.Text
		d.IRQPin = irqEntry.Text
	})

	return container.NewTabItem("Device", f)
}

// createPathTab creates the analog path and conversion tab.
func createPathTab(state *appState) *container.TabItem {
	p := &state.cfg.Path

	kind := widget.NewSelect([]string{"lpdac_lptia", "lpdac_hstia", "hsdac_hstia"}, nil)
	kind.SetSelected(p.Kind)

	vzero, applyVzero := floatEntry(&p.Vzero, "%.3f")
	rtia, applyRTIA := floatEntry(&p.RTIA, "%.0f")
	pga, applyPGA := floatEntry(&p.PGAGain, "%.2f")
	vref, applyVRef := floatEntry(&p.VRef, "%.3f")

	f := form(state, []*widget.FormItem{
		{Text: "Path", Widget: kind},
		{Text: "Vzero (V)", Widget: vzero},
		{Text: "RTIA (Ω)", Widget: rtia},
		{Text: "PGA Gain", Widget: pga},
		{Text: "VRef (V)", Widget: vref},
	}, applyVzero, applyRTIA, applyPGA, applyVRef, func() {
		if kind.Selected != "" {
			p.Kind = kind.Selected
		}
	})

	return container.NewTabItem("Path", f)
}

// createCVTab creates the cyclic voltammetry tab.
func createCVTab(state *appState) *container.TabItem {
	c := &state.cfg.CV
	begin, a1 := floatEntry(&c.EBegin, "%.3f")
	v1, a2 := floatEntry(&c.EVertex1, "%.3f")
	v2, a3 := floatEntry(&c.EVertex2, "%.3f")
	step, a4 := floatEntry(&c.EStep, "%.4f")
	rate, a5 := floatEntry(&c.ScanRate, "%.4f")

	f := form(state, []*widget.FormItem{
		{Text: "Begin (V)", Widget: begin},
		{Text: "Vertex 1 (V)", Widget: v1},
		{Text: "Vertex 2 (V)", Widget: v2},
		{Text: "Step (V)", Widget: step},
		{Text: "Scan Rate (V/s)", Widget: rate},
	}, a1, a2, a3, a4, a5)

	return container.NewTabItem("CV", f)
}

// createDPVTab creates the differential pulse voltammetry tab.
func createDPVTab(state *appState) *container.TabItem {
	d := &state.cfg.DPV
	begin, a1 := floatEntry(&d.EBegin, "%.3f")
	end, a2 := floatEntry(&d.EEnd, "%.3f")
	step, a3 := floatEntry(&d.EStep, "%.4f")
	pulse, a4 := floatEntry(&d.EPulse, "%.4f")
	width, a5 := floatEntry(&d.TPulse, "%.4f")
	rate, a6 := floatEntry(&d.ScanRate, "%.4f")

	inversion := widget.NewSelect([]string{"none", "both", "cathodic", "anodic"}, nil)
	inversion.SetSelected(d.Inversion)

	f := form(state, []*widget.FormItem{
		{Text: "Begin (V)", Widget: begin},
		{Text: "End (V)", Widget: end},
		{Text: "Step (V)", Widget: step},
		{Text: "Pulse (V)", Widget: pulse},
		{Text: "Pulse Width (s)", Widget: width},
		{Text: "Scan Rate (V/s)", Widget: rate},
		{Text: "Inversion", Widget: inversion},
	}, a1, a2, a3, a4, a5, a6, func() {
		if inversion.Selected != "" {
			d.Inversion = inversion.Selected
		}
	})

	return container.NewTabItem("DPV", f)
}

// createCATab creates the chronoamperometry tab.
func createCATab(state *appState) *container.TabItem {
	c := &state.cfg.CA
	edc, a1 := floatEntry(&c.EDC, "%.3f")
	interval, a2 := floatEntry(&c.TInterval, "%.3f")
	run, a3 := floatEntry(&c.TRun, "%.1f")

	f := form(state, []*widget.FormItem{
		{Text: "Potential (V)", Widget: edc},
		{Text: "Interval (s)", Widget: interval},
		{Text: "Run Time (s)", Widget: run},
	}, a1, a2, a3)

	return container.NewTabItem("CA", f)
}

// createMockTab creates the Mock device configuration tab.
func createMockTab(state *appState) *container.TabItem {
	m := &state.cfg.Mock
	gain, a1 := floatEntry(&m.Gain, "%.3f")
	noise, a2 := floatEntry(&m.NoiseLevel, "%.1f")
	temp, a3 := floatEntry(&m.Temperature, "%.1f")

	sampleRateEntry := widget.NewEntry()
	sampleRateEntry.SetText(m.SampleRate.String())

	f := form(state, []*widget.FormItem{
		{Text: "Gain (codes/code)", Widget: gain},
		{Text: "Noise Level (codes)", Widget: noise},
		{Text: "Temperature (°C)", Widget: temp},
		{Text: "Sample Rate", Widget: sampleRateEntry},
	}, a1, a2, a3, func() {
		if sr, err := time.ParseDuration(sampleRateEntry.Text); err == nil {
			m.SampleRate = sr
		}
	})

	return container.NewTabItem("Mock", f)
}
