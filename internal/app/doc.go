// Package app contains the engine facade. It defines the App struct, its
// configuration, and the load/run lifecycle, decoupled from any specific
// entrypoint like a CLI or an embedding program.
package app
