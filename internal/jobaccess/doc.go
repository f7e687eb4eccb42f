// Package jobaccess gives the CLI one view of job history: through the
// daemon API when it is up, straight from jobs.db otherwise.
package jobaccess
