package main

import (
	"fmt"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

func printSuccess(format string, args ...interface{}) {
	successColor.Print("✓ ")
	fmt.Printf(format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	errorColor.Print("✗ ")
	fmt.Printf(format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	warnColor.Print("⚠ ")
	fmt.Printf(format+"\n", args...)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Print("→ ")
	fmt.Printf(format+"\n", args...)
}
