package calendar

import (
	"time"

	"cloud.google.com/go/civil"
)

const (
	firstYear = 2000
	lastYear  = 2060
)

type holiday struct {
	month int
	day   int
	name  string
}

// Feriados inamovibles.
var fixedHolidays = []holiday{
	{1, 1, "Año Nuevo"},
	{3, 24, "Día Nacional de la Memoria por la Verdad y la Justicia"},
	{4, 2, "Día del Veterano y de los Caídos en la Guerra de Malvinas"},
	{5, 1, "Día del Trabajador"},
	{5, 25, "Día de la Revolución de Mayo"},
	{6, 20, "Paso a la Inmortalidad del General Manuel Belgrano"},
	{7, 9, "Día de la Independencia"},
	{12, 8, "Inmaculada Concepción de María"},
	{12, 25, "Navidad"},
}

// Feriados trasladables, on their nominal dates. The observed date follows
// Law 27.399, see moveToMonday.
var movableHolidays = []holiday{
	{6, 17, "Paso a la Inmortalidad del General Martín Miguel de Güemes"},
	{8, 17, "Paso a la Inmortalidad del General José de San Martín"},
	{10, 12, "Día del Respeto a la Diversidad Cultural"},
	{11, 20, "Día de la Soberanía Nacional"},
}

// Bridge days (días no laborables con fines turísticos observed by the
// market). These are decreed year by year.
var bridgeDays = map[int][]holiday{
	2024: {
		{4, 1, "Feriado puente"},
		{6, 21, "Feriado puente"},
		{10, 11, "Feriado puente"},
	},
	2025: {
		{5, 2, "Feriado puente"},
		{8, 15, "Feriado puente"},
		{11, 21, "Feriado puente"},
	},
	2026: {
		{3, 23, "Feriado puente"},
		{7, 10, "Feriado puente"},
		{12, 7, "Feriado puente"},
	},
}

// moveToMonday observes a movable holiday falling on Tuesday or Wednesday on
// the previous Monday, and on Thursday or Friday on the next Monday.
func moveToMonday(d civil.Date) civil.Date {
	switch weekday(d) {
	case time.Tuesday:
		return d.AddDays(-1)
	case time.Wednesday:
		return d.AddDays(-2)
	case time.Thursday:
		return d.AddDays(4)
	case time.Friday:
		return d.AddDays(3)
	}
	return d
}

// Argentina returns the national holiday calendar for 2000-2060. Bridge days
// are only known for the years they have been decreed (2024-2026).
func Argentina() *Calendar {
	h := make(map[civil.Date]string, (lastYear-firstYear+1)*16)
	for y := firstYear; y <= lastYear; y++ {
		for d, n := range ArgentineHolidays(y) {
			h[d] = n
		}
	}
	return &Calendar{name: "AR", holidays: h}
}

// ArgentineHolidays lists the national holidays of a single year.
func ArgentineHolidays(year int) map[civil.Date]string {
	out := make(map[civil.Date]string, 16)
	add := func(hs []holiday) {
		for _, h := range hs {
			out[date(year, h.month, h.day)] = h.name
		}
	}

	add(fixedHolidays)
	add(bridgeDays[year])
	for _, h := range movableHolidays {
		out[moveToMonday(date(year, h.month, h.day))] = h.name
	}

	easter := EasterSunday(year)
	out[easter.AddDays(-48)] = "Carnaval"
	out[easter.AddDays(-47)] = "Carnaval"
	out[easter.AddDays(-2)] = "Viernes Santo"

	return out
}

// EasterSunday computes Western Easter with the anonymous Gregorian algorithm.
func EasterSunday(year int) civil.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, month, day)
}

func date(y, m, d int) civil.Date {
	return civil.Date{Year: y, Month: time.Month(m), Day: d}
}
