package teststub

import (
	"errors"
	"testing"
)

const marker = `__name__ == "__main__"`

func TestParseLaunch(t *testing.T) {
	tests := []struct {
		name    string
		source  string
		want    Launch
		wantErr error
	}{
		{
			name:   "assignment",
			source: "if __name__ == \"__main__\":\n    worker = ChargeWorker(redis=redis_client)\n",
			want:   Launch{Line: "worker = ChargeWorker(redis=redis_client)", ClassName: "ChargeWorker", Variable: "worker"},
		},
		{
			name:   "blank lines before launch",
			source: "if __name__ == \"__main__\":\n\n   \n    w = Mail()\n",
			want:   Launch{Line: "w = Mail()", ClassName: "Mail", Variable: "w"},
		},
		{
			name:   "first call wins",
			source: "if __name__ == \"__main__\":\n    asyncio.run(main())\n",
			want:   Launch{Line: "asyncio.run(main())", ClassName: "run", Variable: "asyncio.run(main())"},
		},
		{
			name:   "unicode identifier",
			source: "if __name__ == \"__main__\":\n    w = Рабочий(1)\n",
			want:   Launch{Line: "w = Рабочий(1)", ClassName: "Рабочий", Variable: "w"},
		},
		{
			name:    "marker on last line",
			source:  "x = 1\nif __name__ == \"__main__\":\n",
			wantErr: ErrNoLaunchLine,
		},
		{
			name:    "no marker",
			source:  "worker = Worker()\n",
			wantErr: ErrNoLaunchLine,
		},
		{
			name:    "no call",
			source:  "if __name__ == \"__main__\":\n    main\n",
			wantErr: ErrNoClassName,
		},
		{
			name:    "unclosed call",
			source:  "if __name__ == \"__main__\":\n    worker = Worker(\n        redis=redis_client)\n",
			wantErr: ErrNoClassName,
		},
		{
			name:    "space before paren",
			source:  "if __name__ == \"__main__\":\n    worker = Worker ()\n",
			wantErr: ErrNoClassName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLaunch(tt.source, marker)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestImportPathAndWorkerName(t *testing.T) {
	tests := []struct {
		path       string
		importPath string
		name       string
	}{
		{"src/workers/billing/charge_worker.py", "src.workers.billing.charge_worker", "charge_worker"},
		{`src\workers\mail.py`, "src.workers.mail", "mail"},
		{"src/workers/py_tools.py", "src.workers.py_tools", "py_tools"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := ImportPath(tt.path, ".py"); got != tt.importPath {
				t.Errorf("ImportPath = %q, expected %q", got, tt.importPath)
			}
			if got := WorkerName(tt.path, ".py"); got != tt.name {
				t.Errorf("WorkerName = %q, expected %q", got, tt.name)
			}
		})
	}
}
