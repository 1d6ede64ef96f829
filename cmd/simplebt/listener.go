package main

import (
	"fmt"
	"io"

	"github.com/bluetuith-org/simple-bluetooth/api/bluetooth"
	"github.com/bluetuith-org/simple-bluetooth/api/errorkinds"
	"github.com/bluetuith-org/simple-bluetooth/internal/serde"
)

// dataEvent is the JSON form of received data.
type dataEvent struct {
	Text  string `json:"text"`
	Bytes []byte `json:"bytes,omitempty"`
}

// printListener prints session callbacks, either as colored text
// or as one JSON document per line.
type printListener struct {
	json bool
	out  io.Writer
}

func (p *printListener) OnDataReceived(data []byte, text string) {
	if p.json {
		p.printJSON(dataEvent{Text: text, Bytes: data})

		return
	}

	printData(text)
}

func (p *printListener) OnDeviceConnected(device bluetooth.DeviceData) {
	p.deviceEvent(bluetooth.DeviceConnected, device)
}

func (p *printListener) OnDeviceDisconnected(device bluetooth.DeviceData) {
	p.deviceEvent(bluetooth.DeviceDisconnected, device)
}

func (p *printListener) OnDiscoveryStarted() {
	p.deviceEvent(bluetooth.DiscoveryStarted, bluetooth.DeviceData{})
}

func (p *printListener) OnDiscoveryFinished() {
	p.deviceEvent(bluetooth.DiscoveryFinished, bluetooth.DeviceData{})
}

// OnError prints errors reported from the session's dispatch loop.
func (p *printListener) OnError(err error) {
	if p.json {
		p.printJSON(bluetooth.Event[errorkinds.GenericError]{
			ID:   bluetooth.EventError,
			Data: errorkinds.GenericError{Errors: err},
		})

		return
	}

	printError(err)
}

func (p *printListener) deviceEvent(action bluetooth.DeviceAction, device bluetooth.DeviceData) {
	if p.json {
		p.printJSON(bluetooth.Event[bluetooth.DeviceStateEvent]{
			ID:   bluetooth.EventDeviceState,
			Data: bluetooth.DeviceStateEvent{Action: action, Device: device},
		})

		return
	}

	switch action {
	case bluetooth.DeviceConnected:
		printInfo("Connected: " + device.DisplayName())

	case bluetooth.DeviceDisconnected:
		printWarn("Disconnected: " + device.DisplayName())

	default:
		printInfo(string(action))
	}
}

func (p *printListener) printJSON(v any) {
	data, err := serde.MarshalJson(v)
	if err != nil {
		printError(err)

		return
	}

	fmt.Fprintln(p.out, string(data))
}
