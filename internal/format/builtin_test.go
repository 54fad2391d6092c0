package format

import (
	"strings"
	"testing"
)

func TestBuiltins_Compile(t *testing.T) {
	r := NewDefaultRegistry()
	if r.Len() != len(Builtins()) {
		t.Fatalf("Len() = %d, want %d", r.Len(), len(Builtins()))
	}
}

func TestBuiltins_Detect(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "apache error",
			content: "[Sun Dec 04 04:47:44 2005] [notice] workerEnv.init() ok /etc/httpd/conf/workers2.properties\n[Sun Dec 04 04:47:44 2005] [error] mod_jk child workerEnv in error state 6",
			want:    "apache-error",
		},
		{
			name:    "hdfs v2",
			content: "2015-10-18 18:01:47,978 INFO org.apache.hadoop.mapreduce.v2.app.MRAppMaster: Created MRAppMaster for application",
			want:    "hdfs-v2",
		},
		{
			name:    "hdfs v1",
			content: "081109 203615 148 INFO dfs.DataNode$PacketResponder: PacketResponder 1 for block blk_38865049064139660 terminating",
			want:    "hdfs-v1",
		},
		{
			name:    "bgl new",
			content: "2024-03-01 10:00:00 JOB 1234 USER=alice QUEUE=batch NODES=4 CORES=64 RUNTIME=01:02:03 STATUS=COMPLETED",
			want:    "bgl-new",
		},
		{
			name:    "bgl old",
			content: "- 1117838570 2005.06.03 R02-M1-N0-C:J12-U11 2005-06-03-15.42.50.675872 R02-M1-N0-C:J12-U11 RAS KERNEL INFO instruction cache parity error corrected",
			want:    "bgl-old",
		},
		{
			name:    "nginx with marker",
			content: `127.0.0.1 - - [10/Oct/2023:13:55:36 +0000] "GET /index.html HTTP/1.1" 200 612 "-" "curl/8.0 nginx-probe"`,
			want:    "nginx",
		},
		{
			name:    "nginx shape without marker falls through",
			content: `127.0.0.1 - - [10/Oct/2023:13:55:36 +0000] "GET /index.html HTTP/1.1" 200 612 "-" "curl/8.0"`,
			want:    "web-access-generic",
		},
		{
			name:    "apache access with user",
			content: `10.0.0.1 - frank [10/Oct/2000:13:55:36 -0700] "GET /apache_pb.gif HTTP/1.0" 200 2326`,
			want:    "apache-access",
		},
		{
			name:    "syslog",
			content: "Jun 14 15:16:01 combo sshd(pam_unix)[19939]: authentication failure; logname= uid=0",
			want:    "syslog",
		},
	}
	r := NewDefaultRegistry()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.Detect(tt.content)
			if !ok || got != tt.want {
				t.Fatalf("Detect() = %q, %v; want %q", got, ok, tt.want)
			}
		})
	}
}

func TestBuiltins_DetectUnknown(t *testing.T) {
	r := NewDefaultRegistry()
	if id, ok := r.Detect("just some words\nwithout structure"); ok {
		t.Fatalf("Detect() = %q, want unknown", id)
	}
}

func TestBuiltins_ParseApacheAccessRejectsAnonymousUser(t *testing.T) {
	r := NewDefaultRegistry()
	line := `10.0.0.1 - - [10/Oct/2000:13:55:36 -0700] "GET / HTTP/1.0" 200 2326`
	if _, ok := r.Parse(line, "apache-access"); ok {
		t.Fatal("apache-access matched a '-' user")
	}
	p, ok := r.Parse(line, "web-access-generic")
	if !ok {
		t.Fatal("web-access-generic did not match")
	}
	if v, _ := p.Fields.Get("timestamp"); v != "10/Oct/2000:13:55:36 -0700" {
		t.Fatalf("timestamp = %q", v)
	}
}

func TestBuiltins_ParseSyslogOptionalPID(t *testing.T) {
	r := NewDefaultRegistry()

	p, ok := r.Parse("Jun  4 15:16:01 host cron[42]: job done", "syslog")
	if !ok {
		t.Fatal("syslog did not match")
	}
	if pid, _ := p.Fields.Get("pid"); pid != "42" {
		t.Fatalf("pid = %q, want 42", pid)
	}
	if proc, _ := p.Fields.Get("process"); proc != "cron" {
		t.Fatalf("process = %q, want cron", proc)
	}

	p, ok = r.Parse("Jun  4 15:16:01 host kernel: boot", "syslog")
	if !ok {
		t.Fatal("syslog without pid did not match")
	}
	if _, ok := p.Fields.Get("pid"); ok {
		t.Fatal("pid reported for a line without one")
	}
	if msg, _ := p.Fields.Get("message"); msg != "boot" {
		t.Fatalf("message = %q, want boot", msg)
	}
}

func TestBuiltins_HDFSContinuationLines(t *testing.T) {
	r := NewDefaultRegistry()
	lines := []string{
		"2015-10-18 18:01:47,978 ERROR org.apache.Foo: failed",
		"java.lang.IllegalStateException: boom",
		"\tat org.apache.Foo.run(Foo.java:10)",
	}
	id, ok := r.Detect(strings.Join(lines, "\n"))
	if !ok || id != "hdfs-v2" {
		t.Fatalf("Detect() = %q, %v", id, ok)
	}
	if p := r.ParseLine(1, lines[0], id); !p.Structured() {
		t.Fatal("header line not structured")
	}
	for i, l := range lines[1:] {
		if p := r.ParseLine(i+2, l, id); p.Structured() {
			t.Fatalf("line %d parsed as structured: %+v", i+2, p)
		}
	}
}

func TestBuiltins_LevelEnums(t *testing.T) {
	r := NewDefaultRegistry()
	for _, id := range []string{"hdfs-v1", "hdfs-v2", "apache-error"} {
		def, _ := r.Get(id)
		f, ok := def.Field("level")
		if !ok || len(f.Enum) == 0 {
			t.Fatalf("%s level field has no enum", id)
		}
	}
}
