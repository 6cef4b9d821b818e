package timezone

import "time"

var Location *time.Location

func init() {
	var err error
	Location, err = time.LoadLocation("Europe/Berlin")
	if err != nil {
		panic(err)
	}
}

// the portal renders all plan dates in German local time, so pin the
// process to Europe/Berlin regardless of where the host happens to run
func Now() time.Time {
	return time.Now().In(Location)
}
