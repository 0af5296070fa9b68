// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package scheduler runs keyed one-shot timers in process.

The auction server keeps one close timer and one reminder timer per open
auction, keyed "close:<id>" and "remind:<id>":

	s := scheduler.New()
	defer s.Stop()

	s.Schedule("close:"+id, endsAt, closeFn)
	s.Cancel("remind:" + id)

Scheduling under an existing key replaces the old job, so an anti-snipe
extension is just another Schedule call. A job whose time has passed fires
immediately, which is how overdue auctions are closed after a restart.

Jobs are not persisted. The caller rebuilds them from the database at
startup.
*/
package scheduler
