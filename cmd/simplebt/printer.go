package main

import (
	"github.com/fatih/color"
)

// printInfo prints an informational message to the screen.
func printInfo(message string) {
	color.New(color.FgGreen, color.Bold).Println("[+] " + message)
}

// printWarn prints a warning to the screen.
func printWarn(message string) {
	message = "[-] " + message

	color.New(color.FgYellow, color.Bold).Println(message)
}

// printError prints an error to the screen.
func printError(err error) {
	message := "[!] " + err.Error()

	color.New(color.FgRed, color.Bold).Println(message)
}

// printData prints data received from a device.
func printData(text string) {
	color.New(color.FgCyan).Print("[<] ")
	color.New(color.Reset).Println(text)
}
