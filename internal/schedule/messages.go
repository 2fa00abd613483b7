package schedule

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Message keys for schedule copy. Label and flag templates carry a single
// {date} placeholder.
const (
	KeyLabelEmbargoed = "schedule.label.embargoed"
	KeyLabelExpired   = "schedule.label.expired"
	KeyLabelExpiring  = "schedule.label.expiring"

	keyFlagEmbargoedShort = "schedule.flag.embargoed.short"
	keyFlagEmbargoedHelp  = "schedule.flag.embargoed.help"
	keyFlagExpiredShort   = "schedule.flag.expired.short"
	keyFlagExpiredHelp    = "schedule.flag.expired.help"
	keyFlagExpiringShort  = "schedule.flag.expiring.short"
	keyFlagExpiringHelp   = "schedule.flag.expiring.help"
)

var supportedTags = []language.Tag{language.English, language.German}

var tagMatcher = language.NewMatcher(supportedTags)

// dateLayouts holds the date format per supported base language
var dateLayouts = map[string]string{
	"en": "2006-01-02",
	"de": "02.01.2006",
}

func init() {
	en := language.English
	message.SetString(en, KeyLabelEmbargoed, "Embargoed until {date}")
	message.SetString(en, KeyLabelExpired, "Expired at {date}")
	message.SetString(en, KeyLabelExpiring, "Will expire at {date}")
	message.SetString(en, keyFlagEmbargoedShort, "Embargoed")
	message.SetString(en, keyFlagEmbargoedHelp, "Item is embargoed until {date}")
	message.SetString(en, keyFlagExpiredShort, "Expired")
	message.SetString(en, keyFlagExpiredHelp, "Item expired on {date}")
	message.SetString(en, keyFlagExpiringShort, "Expiring")
	message.SetString(en, keyFlagExpiringHelp, "Item will expire on {date}")

	de := language.German
	message.SetString(de, KeyLabelEmbargoed, "Gesperrt bis {date}")
	message.SetString(de, KeyLabelExpired, "Abgelaufen am {date}")
	message.SetString(de, KeyLabelExpiring, "Läuft ab am {date}")
	message.SetString(de, keyFlagEmbargoedShort, "Gesperrt")
	message.SetString(de, keyFlagEmbargoedHelp, "Eintrag ist gesperrt bis {date}")
	message.SetString(de, keyFlagExpiredShort, "Abgelaufen")
	message.SetString(de, keyFlagExpiredHelp, "Eintrag ist am {date} abgelaufen")
	message.SetString(de, keyFlagExpiringShort, "Läuft ab")
	message.SetString(de, keyFlagExpiringHelp, "Eintrag läuft am {date} ab")
}

// MatchTag resolves a requested language to the closest supported one
func MatchTag(requested language.Tag) language.Tag {
	_, idx, _ := tagMatcher.Match(requested)
	return supportedTags[idx]
}

// ParseLocale parses a locale string such as "de-DE", falling back to English
func ParseLocale(locale string) language.Tag {
	tag, err := language.Parse(locale)
	if err != nil {
		return language.English
	}
	return MatchTag(tag)
}
