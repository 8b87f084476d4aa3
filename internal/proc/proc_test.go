package proc

import "testing"

func TestProcessName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"C:/Program Files/Course/course.exe", "course"},
		{"/opt/course/bin/course", "course"},
		{"course.exe", "course"},
		{"./app.AppImage", "app"},
	}
	for _, tt := range tests {
		if got := processName(tt.path); got != tt.want {
			t.Errorf("processName(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}
