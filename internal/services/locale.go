package services

import (
	"log"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys shown to users.
const (
	MsgInvalidCredentials = "Invalid username or password"
	MsgAdminLogin         = "Admin login"
	MsgDashboard          = "Dashboard"
	MsgSubmissions        = "Submissions"
	MsgVisits             = "Visits"
	MsgEditor             = "Editor"
	MsgLogout             = "Log out"

	MsgTotalVisits       = "Total visits"
	MsgVisitsToday       = "Visits today"
	MsgRecentSubmissions = "Recent submissions"
	MsgNoSubmissions     = "No submissions yet"
	MsgNoVisits          = "No visits yet"
	MsgReference         = "Reference"
	MsgDate              = "Date"
	MsgName              = "Name"
	MsgPhone             = "Phone"
	MsgEmail             = "Email"
	MsgServices          = "Services"
	MsgMessage           = "Message"
	MsgTime              = "Time"
	MsgPath              = "Path"
	MsgIP                = "IP"
	MsgUserAgent         = "User agent"
	MsgUsername          = "Username"
	MsgPassword          = "Password"
	MsgSignIn            = "Sign in"
	MsgSave              = "Save"
)

var supported = []language.Tag{language.AmericanEnglish, language.Russian, language.German}

var matcher = language.NewMatcher(supported)

var dateLayouts = map[language.Base]string{
	mustBase(language.English): "1/2/2006, 3:04:05 PM",
	mustBase(language.Russian): "02.01.2006, 15:04:05",
	mustBase(language.German):  "2.1.2006, 15:04:05",
}

func init() {
	ru := language.Russian
	_ = message.SetString(ru, MsgInvalidCredentials, "Неверное имя пользователя или пароль")
	_ = message.SetString(ru, MsgAdminLogin, "Вход администратора")
	_ = message.SetString(ru, MsgDashboard, "Панель")
	_ = message.SetString(ru, MsgSubmissions, "Заявки")
	_ = message.SetString(ru, MsgVisits, "Посещения")
	_ = message.SetString(ru, MsgEditor, "Редактор")
	_ = message.SetString(ru, MsgLogout, "Выйти")
	_ = message.SetString(ru, MsgTotalVisits, "Всего посещений")
	_ = message.SetString(ru, MsgVisitsToday, "Посещений сегодня")
	_ = message.SetString(ru, MsgRecentSubmissions, "Последние заявки")
	_ = message.SetString(ru, MsgNoSubmissions, "Заявок пока нет")
	_ = message.SetString(ru, MsgNoVisits, "Посещений пока нет")
	_ = message.SetString(ru, MsgReference, "Номер клиента")
	_ = message.SetString(ru, MsgDate, "Дата")
	_ = message.SetString(ru, MsgName, "Имя")
	_ = message.SetString(ru, MsgPhone, "Телефон")
	_ = message.SetString(ru, MsgEmail, "Эл. почта")
	_ = message.SetString(ru, MsgServices, "Услуги")
	_ = message.SetString(ru, MsgMessage, "Сообщение")
	_ = message.SetString(ru, MsgTime, "Время")
	_ = message.SetString(ru, MsgPath, "Путь")
	_ = message.SetString(ru, MsgIP, "IP-адрес")
	_ = message.SetString(ru, MsgUserAgent, "Браузер")
	_ = message.SetString(ru, MsgUsername, "Имя пользователя")
	_ = message.SetString(ru, MsgPassword, "Пароль")
	_ = message.SetString(ru, MsgSignIn, "Войти")
	_ = message.SetString(ru, MsgSave, "Сохранить")

	de := language.German
	_ = message.SetString(de, MsgInvalidCredentials, "Ungültiger Benutzername oder Passwort")
	_ = message.SetString(de, MsgAdminLogin, "Admin-Anmeldung")
	_ = message.SetString(de, MsgDashboard, "Übersicht")
	_ = message.SetString(de, MsgSubmissions, "Anfragen")
	_ = message.SetString(de, MsgVisits, "Besuche")
	_ = message.SetString(de, MsgEditor, "Editor")
	_ = message.SetString(de, MsgLogout, "Abmelden")
	_ = message.SetString(de, MsgTotalVisits, "Besuche gesamt")
	_ = message.SetString(de, MsgVisitsToday, "Besuche heute")
	_ = message.SetString(de, MsgRecentSubmissions, "Neueste Anfragen")
	_ = message.SetString(de, MsgNoSubmissions, "Noch keine Anfragen")
	_ = message.SetString(de, MsgNoVisits, "Noch keine Besuche")
	_ = message.SetString(de, MsgReference, "Kundennummer")
	_ = message.SetString(de, MsgDate, "Datum")
	_ = message.SetString(de, MsgName, "Name")
	_ = message.SetString(de, MsgPhone, "Telefon")
	_ = message.SetString(de, MsgEmail, "E-Mail")
	_ = message.SetString(de, MsgServices, "Leistungen")
	_ = message.SetString(de, MsgMessage, "Nachricht")
	_ = message.SetString(de, MsgTime, "Zeit")
	_ = message.SetString(de, MsgPath, "Pfad")
	_ = message.SetString(de, MsgIP, "IP-Adresse")
	_ = message.SetString(de, MsgUserAgent, "User-Agent")
	_ = message.SetString(de, MsgUsername, "Benutzername")
	_ = message.SetString(de, MsgPassword, "Passwort")
	_ = message.SetString(de, MsgSignIn, "Anmelden")
	_ = message.SetString(de, MsgSave, "Speichern")
}

func mustBase(t language.Tag) language.Base {
	b, _ := t.Base()
	return b
}

// Locale formats user-facing strings and dates for the display locale.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
	loc     *time.Location
	layout  string
}

// NewLocale resolves locale (a BCP 47 tag such as "ru-RU") against the
// supported set and loads timezone. Unknown values fall back to English
// and the local zone.
func NewLocale(locale, timezone string) *Locale {
	_, idx, _ := matcher.Match(language.Make(locale))
	tag := supported[idx]

	loc := time.Local
	if timezone != "" && timezone != "Local" {
		l, err := time.LoadLocation(timezone)
		if err != nil {
			log.Printf("[API] Unknown DISPLAY_TIMEZONE %q, using local time: %v", timezone, err)
		} else {
			loc = l
		}
	}

	layout, ok := dateLayouts[mustBase(tag)]
	if !ok {
		layout = dateLayouts[mustBase(language.English)]
	}

	return &Locale{
		tag:     tag,
		printer: message.NewPrinter(tag),
		loc:     loc,
		layout:  layout,
	}
}

// Tag returns the matched language tag.
func (l *Locale) Tag() language.Tag {
	return l.tag
}

// T translates a message key.
func (l *Locale) T(key string, args ...interface{}) string {
	return l.printer.Sprintf(key, args...)
}

// FormatDate renders t in the display zone and layout.
func (l *Locale) FormatDate(t time.Time) string {
	return t.In(l.loc).Format(l.layout)
}
