package command

import "github.com/bwmarrin/discordgo"

const (
	EmbedColor = 0xb01e66
	ErrorColor = 0xd9534f
)

// Reply is a transport-neutral command answer.
type Reply struct {
	Title       string
	Description string
	Fields      []Field
	Error       bool
	Ephemeral   bool // honoured by slash replies only
}

type Field struct {
	Name  string
	Value string
}

// Info builds a plain informational reply.
func Info(title, description string) Reply {
	return Reply{Title: title, Description: description}
}

// Failure builds an error reply, shown only to the caller where possible.
func Failure(description string) Reply {
	return Reply{Title: "⚠️ Error", Description: description, Error: true, Ephemeral: true}
}

func (r Reply) Embed() *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       r.Title,
		Description: r.Description,
		Color:       EmbedColor,
	}
	if r.Error {
		embed.Color = ErrorColor
	}
	for _, f := range r.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value})
	}
	return embed
}
