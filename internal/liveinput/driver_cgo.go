//go:build cgo

package liveinput

import (
	"fmt"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type rtmidiDriver struct {
	drv *rtmididrv.Driver
	in  drivers.In
}

// NewDriver opens the rtmidi backend.
func NewDriver() (Driver, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("rtmididrv: %w", err)
	}
	return &rtmidiDriver{drv: drv}, nil
}

func (d *rtmidiDriver) Inputs() ([]string, error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names, nil
}

func (d *rtmidiDriver) Listen(name string, onNote func(on bool, key, velocity uint8), onErr func(error)) (func(), error) {
	ins, err := d.drv.Ins()
	if err != nil {
		return nil, err
	}
	var found drivers.In
	for _, in := range ins {
		if in.String() == name {
			found = in
			break
		}
	}
	if found == nil {
		return nil, fmt.Errorf("input %q not found", name)
	}
	if err := found.Open(); err != nil {
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	stop, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			onNote(true, key, vel)
		case msg.GetNoteEnd(&ch, &key):
			onNote(false, key, 0)
		}
	}, midi.HandleError(onErr))
	if err != nil {
		_ = found.Close()
		return nil, err
	}
	d.in = found
	return func() {
		stop()
		_ = found.Close()
		if d.in == found {
			d.in = nil
		}
	}, nil
}

func (d *rtmidiDriver) Close() error {
	if d.in != nil {
		_ = d.in.Close()
		d.in = nil
	}
	return d.drv.Close()
}
