// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles command-line argument parsing and configuration.

# Configuration

ParseFlags returns a Config struct with all settings:

	cfg, err := cliparse.ParseFlags(os.Args[1:])

When flags are owned by a cobra command, attach NewFlagSet to it and call
Load with the parsed set instead:

	cmd.PersistentFlags().AddFlagSet(cliparse.NewFlagSet())
	cfg, err := cliparse.Load(cmd.Flags())

# Precedence

Values are merged with viper, highest first:

 1. CLI flags
 2. Environment variables (a .env file is loaded first via godotenv)
 3. Config file (-c, or ./auction.yaml when present)
 4. Defaults

# CLI Flags

	-p, --port               Server port (3318)
	-d, --database-url       Database URL (required)
	-t, --database-type      sqlite or postgres (sqlite)
	-c, --config             Config file
	--token-salt             Account token salt (required)
	--base-url               Public base URL
	--reminder-lead          Reminder before close (5m)
	--anti-snipe             Late-bid extension window (2m, 0 disables)
	--long-poll-timeout      Long-poll wait (25s)
	--log-level, --log-format

# Environment Variables

	PORT, DATABASE_URL, DATABASE_TYPE, TOKEN_SALT, BASE_URL,
	REMINDER_LEAD, ANTI_SNIPE_WINDOW, LONG_POLL_TIMEOUT,
	MIN_DURATION, MAX_DURATION, LOG_LEVEL, LOG_FORMAT

# Validation

Load returns an error if DATABASE_URL or TOKEN_SALT is missing, the
database type is unknown, or any duration is out of range.
*/
package cliparse
