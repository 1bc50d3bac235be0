package context

type Key string

const (
	Principal Key = "principal"
	Params    Key = "params"
)
