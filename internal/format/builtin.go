package format

import "regexp"

var (
	javaLevels   = []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	apacheLevels = []string{"emerg", "alert", "crit", "error", "warn", "notice", "info", "debug"}
	httpMethods  = []string{"GET", "HEAD", "POST", "PUT", "DELETE", "PATCH", "OPTIONS", "CONNECT", "TRACE"}
	months       = []string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

	nginxMarker = regexp.MustCompile(`(?i)nginx`)
)

// Builtins returns the built-in format catalogue, highest priority first.
func Builtins() []Definition {
	return []Definition{
		{
			ID:          "apache-error",
			Name:        "Apache Error Log",
			Description: "Apache HTTP Server error log format",
			Priority:    100,
			Patterns: []string{
				`^\[(?P<timestamp>.*?)\] \[(?P<level>[a-z]+)\](?: \[client (?P<client>[^\]]+)\])?(?: (?P<message>.*))?$`,
			},
			Fields: []Field{
				{Name: "timestamp", Description: "Log entry timestamp", Type: TypeDateTime},
				{Name: "level", Description: "Log severity level", Type: TypeString, Enum: apacheLevels},
				{Name: "client", Description: "Client IP address and port", Type: TypeString, Optional: true},
				{Name: "message", Description: "Error message text", Type: TypeString},
			},
		},
		{
			ID:          "hdfs-v2",
			Name:        "HDFS v2",
			Description: "Hadoop HDFS version 2 log format (YYYY-MM-DD HH:MM:SS,mmm)",
			Priority:    90,
			Patterns: []string{
				`^(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2},\d{3}) (?P<level>INFO|WARN|ERROR|DEBUG|TRACE|FATAL) (?P<class>[\w.$:-]+): ?(?P<message>.*)`,
			},
			Fields: []Field{
				{Name: "timestamp", Description: "Timestamp in format YYYY-MM-DD HH:MM:SS,mmm", Type: TypeDateTime},
				{Name: "level", Description: "Log level", Type: TypeString, Enum: javaLevels},
				{Name: "class", Description: "Java class name", Type: TypeString},
				{Name: "message", Description: "Log message content", Type: TypeString},
			},
		},
		{
			ID:          "hdfs-v1",
			Name:        "HDFS v1",
			Description: "Hadoop HDFS version 1 log format (yyMMdd HHmmss)",
			Priority:    85,
			Patterns: []string{
				`^(?P<date>\d{6}) (?P<time>\d{6}) (?P<thread>\d+) (?P<level>[A-Z]+) (?P<class>[\w.$:-]+): ?(?P<message>.*)`,
			},
			Fields: []Field{
				{Name: "date", Description: "Date in format yyMMdd", Type: TypeDate},
				{Name: "time", Description: "Time in format HHmmss", Type: TypeTime},
				{Name: "thread", Description: "Thread ID", Type: TypeNumber},
				{Name: "level", Description: "Log level", Type: TypeString, Enum: javaLevels},
				{Name: "class", Description: "Java class name", Type: TypeString},
				{Name: "message", Description: "Log message content", Type: TypeString},
			},
		},
		{
			ID:          "bgl-new",
			Name:        "BGL (New)",
			Description: "Blue Gene/L new format with structured job information",
			Priority:    80,
			Patterns: []string{
				`^(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) JOB (?P<jobId>\d+) USER=(?P<user>\w+) QUEUE=(?P<queue>\w+) NODES=(?P<nodes>\d+) CORES=(?P<cores>\d+) RUNTIME=(?P<runtime>\d{2}:\d{2}:\d{2}) STATUS=(?P<status>\w+)`,
			},
			Fields: []Field{
				{Name: "timestamp", Description: "Job event timestamp", Type: TypeDateTime},
				{Name: "jobId", Description: "Unique job identifier", Type: TypeNumber},
				{Name: "user", Description: "Username who submitted the job", Type: TypeString},
				{Name: "queue", Description: "Queue name", Type: TypeString},
				{Name: "nodes", Description: "Number of compute nodes", Type: TypeNumber},
				{Name: "cores", Description: "Total CPU cores used", Type: TypeNumber},
				{Name: "runtime", Description: "Job runtime in HH:MM:SS", Type: TypeDuration},
				{Name: "status", Description: "Job completion status", Type: TypeString},
			},
		},
		{
			ID:          "bgl-old",
			Name:        "BGL (Old)",
			Description: "Blue Gene/L old format with timestamp",
			Priority:    75,
			Patterns: []string{
				`(?P<timestamp>\d{4}-\d{2}-\d{2}-\d{2}\.\d{2}\.\d{2}\.\d{6})`,
			},
			Fields: []Field{
				{Name: "timestamp", Description: "Timestamp in format YYYY-MM-DD-HH.MM.SS.microseconds", Type: TypeDateTime},
			},
		},
		{
			ID:          "nginx",
			Name:        "Nginx",
			Description: "Nginx web server access log",
			Priority:    70,
			Patterns: []string{
				`^(?P<ip>\S+) - (?P<user>\S+) \[(?P<timestamp>\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})\] "(?P<method>\w+) (?P<path>\S+) (?P<protocol>HTTP/[\d.]+)" (?P<status>\d{3}) (?P<bytes>\d+) "(?P<referer>[^"]*)" "(?P<userAgent>[^"]*)"`,
			},
			Validate: PreviewValidator(nginxMarker, DefaultPreviewLines),
			Fields: []Field{
				{Name: "ip", Description: "Client IP address", Type: TypeString},
				{Name: "user", Description: "Authenticated username", Type: TypeString},
				{Name: "timestamp", Description: "Request timestamp", Type: TypeDateTime},
				{Name: "method", Description: "HTTP method", Type: TypeString, Enum: httpMethods},
				{Name: "path", Description: "Request URI path", Type: TypeString},
				{Name: "protocol", Description: "HTTP protocol version", Type: TypeString},
				{Name: "status", Description: "HTTP response status code", Type: TypeNumber},
				{Name: "bytes", Description: "Response size in bytes", Type: TypeNumber},
				{Name: "referer", Description: "HTTP referer header", Type: TypeString},
				{Name: "userAgent", Description: "Client user agent string", Type: TypeString},
			},
		},
		{
			ID:          "apache-access",
			Name:        "Apache Access Log",
			Description: "Apache HTTP Server access log (Common Log Format)",
			Priority:    65,
			Patterns: []string{
				// user must not be "-": anonymous lines fall through to web-access-generic.
				`^(?P<ip>\S+) (?P<ident>\S+) (?P<user>[^-\s]\S*) \[(?P<timestamp>\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})\] "(?P<method>\w+) (?P<path>\S+) (?P<protocol>HTTP/[\d.]+)" (?P<status>\d{3}) (?P<bytes>\d+)`,
			},
			Fields: []Field{
				{Name: "ip", Description: "Client IP address", Type: TypeString},
				{Name: "ident", Description: "Client identity (RFC 1413)", Type: TypeString},
				{Name: "user", Description: "Authenticated username", Type: TypeString},
				{Name: "timestamp", Description: "Request timestamp", Type: TypeDateTime},
				{Name: "method", Description: "HTTP method", Type: TypeString, Enum: httpMethods},
				{Name: "path", Description: "Request URI path", Type: TypeString},
				{Name: "protocol", Description: "HTTP protocol version", Type: TypeString},
				{Name: "status", Description: "HTTP response status code", Type: TypeNumber},
				{Name: "bytes", Description: "Response size in bytes", Type: TypeNumber},
			},
		},
		{
			ID:          "syslog",
			Name:        "Syslog",
			Description: "Standard Unix/Linux syslog format",
			Priority:    60,
			Patterns: []string{
				`^(?P<month>\w{3}) +(?P<day>\d{1,2}) (?P<time>\d{2}:\d{2}:\d{2}) (?P<hostname>\S+) (?P<process>\S+?)(?:\[(?P<pid>\d+)\])?: ?(?P<message>.*)`,
			},
			Fields: []Field{
				{Name: "month", Description: "Month abbreviation", Type: TypeString, Enum: months},
				{Name: "day", Description: "Day of month", Type: TypeNumber},
				{Name: "time", Description: "Time in HH:MM:SS", Type: TypeTime},
				{Name: "hostname", Description: "Hostname or IP", Type: TypeString},
				{Name: "process", Description: "Process or daemon name", Type: TypeString},
				{Name: "pid", Description: "Process ID", Type: TypeNumber, Optional: true},
				{Name: "message", Description: "Log message content", Type: TypeString},
			},
		},
		{
			ID:          "web-access-generic",
			Name:        "Web Access Log",
			Description: "Generic web server access log format",
			Priority:    50,
			Patterns: []string{
				`^(?P<ip>\S+) - (?P<user>\S+) \[(?P<timestamp>\d{2}/\w{3}/\d{4}:\d{2}:\d{2}:\d{2} [+-]\d{4})\]`,
			},
			Fields: []Field{
				{Name: "ip", Description: "Client IP address", Type: TypeString},
				{Name: "user", Description: "Username", Type: TypeString},
				{Name: "timestamp", Description: "Request timestamp", Type: TypeDateTime},
			},
		},
	}
}
