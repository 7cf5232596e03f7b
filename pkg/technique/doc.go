// Package technique sets up the AFE for one measurement technique and
// hands the running device over to the FIFO interrupt path.
//
// Every Start method first builds the complete program image and wakeup
// schedule in memory. Only a valid build touches the device, in a fixed
// order: wake, clear flags, configure the analog path, load programs,
// configure the DSP, route the FIFO threshold interrupt, arm the FIFO and
// finally start the sequencer and the wakeup timer. A failure at any step
// leaves the Runner Faulted; nothing is rolled back.
package technique
