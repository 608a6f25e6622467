package service

import "github.com/Shivanand-hulikatti/workshop-registration/internal/model"

const signature = "\n\nKind regards,\nThe workshop team"

// DefaultTemplates is the template set seeded by InitDefaultTemplates.
var DefaultTemplates = []model.MessageTemplate{
	{
		Channel: model.ChannelSMS,
		Trigger: model.TriggerRegistrationConfirmed,
		Body: "Thanks {first_name} for registering for {course_title}. See you in {location} on {date} at {time}. " +
			"You can pay on site or by invoice after the course.",
	},
	{
		Channel: model.ChannelSMS,
		Trigger: model.TriggerRegistrationMixed,
		Body: "Thanks {first_name} for registering for {course_title}. See you in {location} on {date} at {time}. " +
			"{num_registered} of your group are registered, {num_waitlist} are on the waitlist. " +
			"I will get in touch as soon as spots free up.",
	},
	{
		Channel: model.ChannelSMS,
		Trigger: model.TriggerRegistrationWaitlist,
		Body: "Thanks {first_name} for registering for {course_title}. The course is full and you are on the waitlist. " +
			"I will get in touch as soon as a spot frees up.",
	},
	{
		Channel: model.ChannelSMS,
		Trigger: model.TriggerPromotedFromWaitlist,
		Body: "A spot in {course_title} became free and you are now registered. See you in {location} on {date} at {time}. " +
			"You can pay on site or by invoice after the course.",
	},
	{
		Channel: model.ChannelSMS,
		Trigger: model.TriggerReminder1Day,
		Body:    "Tomorrow at {time} is {course_title}. {location_url}",
	},
	{
		Channel: model.ChannelSMS,
		Trigger: model.TriggerAdminNewRegistration,
		Body:    "{num_participants} person(s) registered for {course_title} on {date}.",
	},
	{
		Channel: model.ChannelEmail,
		Trigger: model.TriggerRegistrationConfirmed,
		Subject: "Registration confirmed: {course_title}",
		Body: "Hello {first_name},\n\nthanks for registering for \"{course_title}\".\n\n" +
			"Date: {date}\nTime: {time}\nLocation: {location}\n\n" +
			"You can pay on site or by invoice after the course.\n\nLooking forward to seeing you!" + signature,
	},
	{
		Channel: model.ChannelEmail,
		Trigger: model.TriggerRegistrationMixed,
		Subject: "Registration: {course_title}",
		Body: "Hello {first_name},\n\nthanks for registering for \"{course_title}\".\n\n" +
			"Date: {date}\nTime: {time}\nLocation: {location}\n\n" +
			"{num_registered} person(s) are registered for the course.\n" +
			"{num_waitlist} person(s) are on the waitlist for now.\n\n" +
			"I will get in touch as soon as spots free up.\n\n" +
			"You can pay on site or by invoice after the course." + signature,
	},
	{
		Channel: model.ChannelEmail,
		Trigger: model.TriggerRegistrationWaitlist,
		Subject: "Waitlist: {course_title}",
		Body: "Hello {first_name},\n\nthanks for registering for \"{course_title}\".\n\n" +
			"The course is currently full and you are on the waitlist.\n" +
			"I will get in touch as soon as a spot frees up." + signature,
	},
	{
		Channel: model.ChannelEmail,
		Trigger: model.TriggerPromotedFromWaitlist,
		Subject: "A spot is free: {course_title}",
		Body: "Hello {first_name},\n\ngood news! A spot in \"{course_title}\" became free.\n\n" +
			"Date: {date}\nTime: {time}\nLocation: {location}\n\n" +
			"You are now registered. You can pay on site or by invoice after the course." + signature,
	},
	{
		Channel: model.ChannelEmail,
		Trigger: model.TriggerAdminNewRegistration,
		Subject: "New registration: {course_title}",
		Body: "New registration received.\n\n" +
			"Course: {course_title} ({date})\n" +
			"Participant: {first_name} {last_name}\n" +
			"Phone: {phone}\nEmail: {email}\n" +
			"Participants: {num_participants} ({num_registered} confirmed, {num_waitlist} waitlisted)",
	},
}
