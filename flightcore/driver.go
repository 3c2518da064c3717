package flightcore

// Driver identifies a store backend.
type Driver string

const (
	DriverNull   Driver = "null"
	DriverFile   Driver = "file"
	DriverMemory Driver = "memory"
	DriverDynamo Driver = "dynamodb"
	DriverSQL    Driver = "sql"
	DriverRedis  Driver = "redis"
	DriverNATS   Driver = "nats"
)
