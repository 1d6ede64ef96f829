package bluetooth

// DeviceData holds the information of a remote Bluetooth device,
// as reported by the host Bluetooth stack.
type DeviceData struct {
	// Name holds the name of the device.
	Name string `json:"name,omitempty" codec:"Name,omitempty"`

	// Alias holds the optional or user-assigned name for the device.
	Alias string `json:"alias,omitempty" codec:"Alias,omitempty"`

	// Address holds the Bluetooth MAC address of the device.
	Address MacAddress `json:"address,omitempty" codec:"Address,omitempty"`

	// AssociatedAdapter holds the Bluetooth MAC address of the adapter
	// the device is associated with.
	AssociatedAdapter MacAddress `json:"associated_adapter,omitempty" codec:"-"`

	// Class holds the device type class specifier.
	Class uint32 `json:"class,omitempty" codec:"Class,omitempty"`

	// Paired indicates if the device is paired.
	Paired bool `json:"paired,omitempty" codec:"Paired,omitempty"`

	// Connected indicates if the device is connected.
	Connected bool `json:"connected,omitempty" codec:"Connected,omitempty"`

	// UUIDs holds the device-supported Bluetooth profile UUIDs.
	UUIDs []string `json:"uuids,omitempty" codec:"UUIDs,omitempty"`
}

// DisplayName returns the alias of the device if present, the name otherwise.
// Devices without either are identified by their address.
func (d DeviceData) DisplayName() string {
	switch {
	case d.Alias != "":
		return d.Alias

	case d.Name != "":
		return d.Name
	}

	return d.Address.String()
}

// MatchName reports whether the device is known under the provided name.
func (d DeviceData) MatchName(name string) bool {
	return name != "" && (d.Name == name || d.Alias == name)
}
