// Package sim provides in-process stand-ins for the host collaborators:
// a background execution driver, a location sensor, a permission backend
// and a settings prompter. They back the runnerctl command and the
// package tests.
package sim
