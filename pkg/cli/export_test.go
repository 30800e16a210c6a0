package cli

var (
	PrintEnvelope = printEnvelope
	DescribeError = describeError
)
