// Package domain models the Chicago heat-vulnerability datasets and the
// pure joins that fuse them into one row per census tract.
//
// # Geography
//
// Chicago is partitioned into 77 community areas, numbered 1 through 77,
// and roughly 800 2010 census tracts. Every tract belongs to exactly one
// community area, so tract rows carry both keys:
//
//	geoid10     11-digit tract GEOID, e.g. 17031842400
//	            (state 17, county 031, tract 842400)
//	commarea_n  community area number, 1-77
//
// Census block identifiers ("CENSUS BLOCK FULL") are 15 digits: the tract
// GEOID followed by a 4-digit block number. Dropping the last four digits
// yields the owning tract. See [TractFromBlock].
//
// # Weather
//
// Hourly reanalysis comes from the NREL National Solar Radiation Database
// (NSRDB, PSM v3), sampled at each community-area centroid. Temperatures
// are degrees Celsius at 2 m. Timestamps are local standard time with no
// daylight saving, stored without a zone.
//
// Per-area CSVs name their variables with the area number as a suffix:
//
//	Temp_<n>  air temperature (°C)
//	Wind_<n>  wind speed (m/s)
//	RH_<n>    relative humidity (%)
//	SA_<n>    surface albedo
//	P_<n>     surface pressure (mbar)
//	GHI_<n>   global horizontal irradiance (W/m²)
//
// # Heatwave anomaly
//
// A heatwave hour is any timestamp whose citywide mean temperature (the
// mean across all community areas reporting at that hour) strictly exceeds
// the threshold, 32 °C by default. An area's anomaly H_a is its mean
// deviation from the citywide mean over those hours; H_amin shifts every
// H_a so the coolest area reads zero. See [ComputeAnomalies].
//
// # Joins
//
// Tract enrichment mirrors a left-to-right table merge. Left joins keep
// every tract and leave unmatched columns null (nil pointers here); inner
// joins drop tracts with no match. Each join reports a [MergeCheck] so row
// loss is visible rather than silent.
package domain
