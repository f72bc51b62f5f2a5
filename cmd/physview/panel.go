package main

import (
	"image/color"

	"github.com/ebitenui/ebitenui"
	"github.com/ebitenui/ebitenui/image"
	"github.com/ebitenui/ebitenui/widget"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"golang.org/x/image/font/basicfont"

	"github.com/milk9111/physync/config"
)

// panelHandlers receive the settings picked in the panel.
type panelHandlers struct {
	backend func(name string)
	steps   func(mode string)
	gravity func(on bool)
	pause   func()
}

// Panel is the settings column on the right edge of the viewer.
type Panel struct {
	ui       *ebitenui.UI
	backends *choice
	steps    *choice
	gravity  *widget.Button
	pause    *widget.Button

	gravityOn bool
	paused    bool
	// suppress is set while the panel mirrors a config it did not pick.
	suppress bool
}

// choice is a radio group of toggle buttons, one per value.
type choice struct {
	group   *widget.RadioGroup
	buttons []*widget.Button
	values  []string
}

func (c *choice) set(value string) {
	for i, v := range c.values {
		if v == value {
			c.group.SetActive(c.buttons[i])
			return
		}
	}
}

func (c *choice) value(active widget.RadioGroupElement) (string, bool) {
	for i, b := range c.buttons {
		if active == b {
			return c.values[i], true
		}
	}
	return "", false
}

func NewPanel(cfg *config.Config, h panelHandlers) *Panel {
	var face text.Face = text.NewGoXFace(basicfont.Face7x13)
	labelColor := color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	textColor := &widget.ButtonTextColor{
		Idle:    labelColor,
		Hover:   labelColor,
		Pressed: color.NRGBA{R: 0xff, G: 0xd7, B: 0x00, A: 0xff},
	}
	buttonImage := &widget.ButtonImage{
		Idle:    image.NewNineSliceColor(color.NRGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}),
		Hover:   image.NewNineSliceColor(color.NRGBA{R: 0x44, G: 0x44, B: 0x55, A: 0xff}),
		Pressed: image.NewNineSliceColor(color.NRGBA{R: 0x22, G: 0x55, B: 0x88, A: 0xff}),
	}

	column := widget.NewContainer(
		widget.ContainerOpts.BackgroundImage(image.NewNineSliceColor(color.NRGBA{A: 180})),
		widget.ContainerOpts.Layout(widget.NewRowLayout(
			widget.RowLayoutOpts.Direction(widget.DirectionVertical),
			widget.RowLayoutOpts.Spacing(6),
			widget.RowLayoutOpts.Padding(&widget.Insets{Top: 10, Bottom: 10, Left: 10, Right: 10}),
		)),
		widget.ContainerOpts.WidgetOpts(
			widget.WidgetOpts.MinSize(160, 0),
			widget.WidgetOpts.LayoutData(widget.AnchorLayoutData{
				HorizontalPosition: widget.AnchorLayoutPositionEnd,
				VerticalPosition:   widget.AnchorLayoutPositionStart,
			}),
		),
	)

	p := &Panel{}
	heading := func(label string) {
		column.AddChild(widget.NewText(widget.TextOpts.Text(label, &face, labelColor)))
	}
	button := func(label string, toggle bool, clicked func()) *widget.Button {
		opts := []widget.ButtonOpt{
			widget.ButtonOpts.Image(buttonImage),
			widget.ButtonOpts.Text(label, &face, textColor),
			widget.ButtonOpts.WidgetOpts(widget.WidgetOpts.MinSize(140, 24)),
		}
		if toggle {
			opts = append(opts, widget.ButtonOpts.ToggleMode())
		}
		if clicked != nil {
			opts = append(opts, widget.ButtonOpts.ClickedHandler(func(args *widget.ButtonClickedEventArgs) {
				clicked()
			}))
		}
		b := widget.NewButton(opts...)
		column.AddChild(b)
		return b
	}
	radio := func(values []string, picked func(string)) *choice {
		c := &choice{values: values}
		elements := make([]widget.RadioGroupElement, 0, len(values))
		for _, v := range values {
			b := button(v, true, nil)
			c.buttons = append(c.buttons, b)
			elements = append(elements, b)
		}
		c.group = widget.NewRadioGroup(
			widget.RadioGroupOpts.Elements(elements...),
			widget.RadioGroupOpts.ChangedHandler(func(args *widget.RadioGroupChangedEventArgs) {
				if p.suppress || picked == nil {
					return
				}
				if v, ok := c.value(args.Active); ok {
					picked(v)
				}
			}),
		)
		return c
	}

	heading("Backend")
	p.backends = radio(config.Backends, h.backend)
	heading("Steps")
	p.steps = radio(config.StepModes, h.steps)
	heading("World")
	p.gravity = button("", false, func() {
		p.gravityOn = !p.gravityOn
		p.setLabels()
		if h.gravity != nil {
			h.gravity(p.gravityOn)
		}
	})
	p.pause = button("Pause", false, h.pause)

	root := widget.NewContainer(widget.ContainerOpts.Layout(widget.NewAnchorLayout()))
	root.AddChild(column)
	p.ui = &ebitenui.UI{Container: root}

	p.Sync(cfg, false)
	return p
}

// Sync shows cfg and the pause state without calling any handler.
func (p *Panel) Sync(cfg *config.Config, paused bool) {
	p.suppress = true
	defer func() { p.suppress = false }()

	p.backends.set(cfg.Backend)
	mode := cfg.Steps.Mode
	if mode == "" {
		mode = config.StepModes[0]
	}
	p.steps.set(mode)
	p.gravityOn = cfg.Gravity != [3]float64{}
	p.paused = paused
	p.setLabels()
}

func (p *Panel) setLabels() {
	label := "Gravity: Off"
	if p.gravityOn {
		label = "Gravity: On"
	}
	if t := p.gravity.Text(); t != nil {
		t.Label = label
	}
	label = "Pause"
	if p.paused {
		label = "Resume"
	}
	if t := p.pause.Text(); t != nil {
		t.Label = label
	}
}

func (p *Panel) Update() { p.ui.Update() }

func (p *Panel) Draw(screen *ebiten.Image) { p.ui.Draw(screen) }
