/*
Package dbushelper provides DBus specific helpers to:
- Translate DBus paths to Bluetooth addresses.
- Decode a map of DBus variants to a provided struct.
- Wrap errors published from the signal handler with
DBus signal data.

It also has constants defined for various DBus related
bus and property names.
*/
package dbushelper
