package definition

import "fmt"

func sprint(v ...interface{}) string {
	return fmt.Sprint(v...)
}

func sprintf(format string, v ...interface{}) string {
	return fmt.Sprintf(format, v...)
}
