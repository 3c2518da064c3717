package flight

import "github.com/goforj/flight/flightcore"

// Store is the backing contract a Loader remembers values into.
type Store = flightcore.Store

// Driver identifies a store backend.
type Driver = flightcore.Driver

const (
	DriverNull   = flightcore.DriverNull
	DriverFile   = flightcore.DriverFile
	DriverMemory = flightcore.DriverMemory
	DriverDynamo = flightcore.DriverDynamo
	DriverSQL    = flightcore.DriverSQL
	DriverRedis  = flightcore.DriverRedis
	DriverNATS   = flightcore.DriverNATS
)
