/*
Package mystrom controls and queries myStrom devices on the local network.

Switches, bulbs, motion sensors and buttons are driven over their HTTP API.
Each client embeds a Session, which owns (or borrows) the HTTP client and
caches nothing itself; the typed clients keep the last snapshot returned by
their Refresh or Get methods.

	sw := mystrom.NewSwitch("192.168.0.40")
	defer sw.Close()
	if err := sw.TurnOn(ctx); err != nil {
		...
	}
	w, _ := sw.Consumption()

Devices also announce themselves over UDP broadcast; Discover collects
those announcements for as long as its context allows.
*/
package mystrom
